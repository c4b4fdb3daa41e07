package handler

import (
	"log/slog"
	"net/http"

	"github.com/NYTimes/gziphandler"
	"github.com/gorilla/mux"
	"github.com/graphql-go/graphql"
	gqlhandler "github.com/graphql-go/handler"
	"github.com/rs/cors"

	"github.com/organigram-api/internal/config"
	"github.com/organigram-api/internal/meta"
	"github.com/organigram-api/internal/middleware"
)

// Handlers - набор обработчиков, монтируемых роутером
type Handlers struct {
	Resources  *ResourceHandler
	Grades     *GradeHandler
	Details    *DetailHandler
	Structures *StructureHandler
	Positions  *PositionHandler
	Edges      *EdgeHandler
	Diagrams   *DiagramHandler
	Dashboard  *DashboardHandler
}

// Router настраивает маршруты API: специализированные операции,
// генерируемый CRUD для каждой сущности реестра и GraphQL
type Router struct {
	reg      *meta.Registry
	schema   graphql.Schema
	handlers Handlers
	cache    config.CacheConfig
	logger   *slog.Logger
}

// NewRouter создаёт новый роутер
func NewRouter(reg *meta.Registry, schema graphql.Schema, handlers Handlers, cache config.CacheConfig, logger *slog.Logger) *Router {
	return &Router{
		reg:      reg,
		schema:   schema,
		handlers: handlers,
		cache:    cache,
		logger:   logger,
	}
}

// Setup настраивает все маршруты и оборачивает их в middleware.
// Специализированные маршруты регистрируются раньше генерируемых:
// mux выбирает первый совпавший.
func (rt *Router) Setup() http.Handler {
	root := mux.NewRouter()
	api := root.PathPrefix("/api").Subrouter()

	api.HandleFunc("/dashboard/", rt.handlers.Dashboard.Stats).Methods(http.MethodGet)

	api.HandleFunc("/grades/bulk_create", rt.handlers.Grades.BulkCreate).Methods(http.MethodPost)
	api.HandleFunc("/missions/bulk_create", rt.handlers.Details.BulkCreate("mission")).Methods(http.MethodPost)
	api.HandleFunc("/competences/bulk_create", rt.handlers.Details.BulkCreate("competence")).Methods(http.MethodPost)

	api.HandleFunc("/structures/{id:[0-9]+}/tree", rt.handlers.Structures.Tree).Methods(http.MethodGet)
	api.HandleFunc("/structures/{id:[0-9]+}/auto-organize", rt.handlers.Structures.AutoOrganize).Methods(http.MethodPost)
	api.HandleFunc("/structures/{id:[0-9]+}/auto-organize-diagram", rt.handlers.Structures.AutoOrganizeDiagram).Methods(http.MethodPost)
	api.HandleFunc("/structures/{id:[0-9]+}/", rt.handlers.Structures.Update(false)).Methods(http.MethodPut)
	api.HandleFunc("/structures/{id:[0-9]+}/", rt.handlers.Structures.Update(true)).Methods(http.MethodPatch)

	api.HandleFunc("/positions/bulk-update", rt.handlers.Positions.BulkCoordinates).Methods(http.MethodPost)
	api.HandleFunc("/positions/{id:[0-9]+}/parent", rt.handlers.Positions.Parent).Methods(http.MethodGet)
	api.HandleFunc("/positions/{id:[0-9]+}/update-edge-source", rt.handlers.Positions.UpdateEdgeSource).Methods(http.MethodPost)
	api.HandleFunc("/positions/{id:[0-9]+}/clone", rt.handlers.Positions.Clone).Methods(http.MethodPost)
	api.HandleFunc("/positions/", rt.handlers.Positions.Create).Methods(http.MethodPost)

	api.HandleFunc("/edges/", rt.handlers.Edges.Create).Methods(http.MethodPost)
	api.HandleFunc("/edges/{id:[0-9]+}/", rt.handlers.Edges.Update(false)).Methods(http.MethodPut)
	api.HandleFunc("/edges/{id:[0-9]+}/", rt.handlers.Edges.Update(true)).Methods(http.MethodPatch)

	api.HandleFunc("/diagram-positions/", rt.handlers.Diagrams.Upsert).Methods(http.MethodPost)

	for _, desc := range rt.reg.Entities() {
		rt.mountResource(api, desc)
	}

	root.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	root.Handle("/graphql", gqlhandler.New(&gqlhandler.Config{
		Schema:   &rt.schema,
		Pretty:   true,
		GraphiQL: true,
	}))

	var handler http.Handler = root
	if rt.cache.Enabled {
		handler = middleware.ResponseCache(rt.cache.TTL, rt.cache.MaxEntries)(handler)
	}
	handler = middleware.ContentType(handler)
	handler = gziphandler.GzipHandler(handler)
	handler = cors.New(cors.Options{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(handler)
	handler = middleware.Logger(rt.logger)(handler)
	handler = middleware.Recoverer(rt.logger)(handler)

	return handler
}

// mountResource регистрирует генерируемые CRUD-маршруты одной сущности
func (rt *Router) mountResource(api *mux.Router, desc *meta.EntityDescriptor) {
	h := rt.handlers.Resources
	collection := "/" + desc.Route + "/"
	item := collection + "{id:[0-9]+}/"

	api.HandleFunc(collection, h.List(desc)).Methods(http.MethodGet)
	api.HandleFunc(collection, h.Create(desc)).Methods(http.MethodPost)
	api.HandleFunc(collection+"bulk_create", h.BulkCreate(desc)).Methods(http.MethodPost)
	api.HandleFunc(collection+"bulk_update", h.BulkUpdate(desc)).Methods(http.MethodPost)
	api.HandleFunc(collection+"bulk_delete", h.BulkDelete(desc)).Methods(http.MethodPost)
	api.HandleFunc(item, h.Retrieve(desc)).Methods(http.MethodGet)
	api.HandleFunc(item, h.Update(desc, false)).Methods(http.MethodPut)
	api.HandleFunc(item, h.Update(desc, true)).Methods(http.MethodPatch)
	api.HandleFunc(item, h.Delete(desc)).Methods(http.MethodDelete)
}
