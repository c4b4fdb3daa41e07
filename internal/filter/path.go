package filter

import (
	"strings"

	"github.com/organigram-api/internal/domain"
)

// buildCompactIndex строит отображение компактной (одно подчёркивание)
// формы ключа на каноническую. При коллизии выигрывает ключ с большим
// числом переходов по связям: grade_name трактуется как grade -> name,
// а не как литеральное поле grade_name.
func (s *Spec) buildCompactIndex() {
	s.compact = make(map[string]string, len(s.Keys))
	for _, key := range s.Keys {
		flat := strings.ReplaceAll(key, "__", "_")
		if prev, ok := s.compact[flat]; ok && strings.Count(key, "__") <= strings.Count(prev, "__") {
			continue
		}
		s.compact[flat] = key
	}
}

// LookupCompact разбирает компактный ключ фильтра GraphQL
// (grade_name_icontains, structure_parent_id_in): сначала отделяется
// суффикс оператора, затем остаток раскладывается по графу внешних ключей.
// Ключ без валидного разбора трактуется как литеральное имя поля.
func (s *Spec) LookupCompact(key string) (*Field, string, error) {
	if canonical, ok := s.compact[key]; ok {
		return s.Fields[canonical], OpExact, nil
	}
	for _, op := range allOpsByLength {
		suffix := "_" + strings.ReplaceAll(op, "__", "_")
		if !strings.HasSuffix(key, suffix) {
			continue
		}
		base := strings.TrimSuffix(key, suffix)
		canonical, ok := s.compact[base]
		if !ok {
			continue
		}
		f := s.Fields[canonical]
		if !f.Allows(op) {
			continue
		}
		return f, op, nil
	}
	return nil, "", domain.NewValidationError("unknown filter field %q", key)
}

// CompactKey возвращает компактную форму канонического ключа с оператором;
// используется генератором входных типов GraphQL
func CompactKey(key, op string) string {
	flat := strings.ReplaceAll(key, "__", "_")
	if op == "" || op == OpExact {
		return flat
	}
	return flat + "_" + strings.ReplaceAll(op, "__", "_")
}
