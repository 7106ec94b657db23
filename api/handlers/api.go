package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/linesmerrill/resolveit-api/api"
	"github.com/linesmerrill/resolveit-api/api/scheduler"
	"github.com/linesmerrill/resolveit-api/config"
	"github.com/linesmerrill/resolveit-api/consent"
	"github.com/linesmerrill/resolveit-api/databases"
	"github.com/linesmerrill/resolveit-api/lifecycle"
	"github.com/linesmerrill/resolveit-api/models"
	"github.com/linesmerrill/resolveit-api/notify"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router *mux.Router
	Config config.Config

	Client   databases.ClientHelper
	Cases    databases.CaseDatabase
	Panels   databases.PanelDatabase
	Users    databases.UserDatabase
	Counters databases.CounterDatabase
	Mailer   notify.Mailer

	Auth         *api.Auth
	Hub          *LiveHub
	Metrics      *api.Metrics
	Engine       *lifecycle.Engine
	PanelService *lifecycle.PanelService
	Scheduler    *scheduler.Scheduler

	Clock func() time.Time
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	r := mux.NewRouter()
	r.Use(a.Metrics.MetricsMiddleware)

	c := Case{Engine: a.Engine, DB: a.Cases}
	adm := Admin{Engine: a.Engine, Panels: a.PanelService, DB: a.Cases, UDB: a.Users, Clock: a.Clock}
	pub := Consent{Engine: a.Engine}
	u := User{DB: a.Users, Clock: a.Clock}
	cloudinaryHandler := CloudinaryHandler{
		Engine:       a.Engine,
		CloudName:    a.Config.CloudinaryCloudName,
		APIKey:       a.Config.CloudinaryAPIKey,
		APISecret:    a.Config.CloudinaryAPISecret,
		UploadPreset: a.Config.CloudinaryUploadPreset,
		Clock:        a.Clock,
	}

	authed := func(h http.HandlerFunc) http.Handler { return a.Auth.Middleware(h) }
	admin := func(h http.HandlerFunc) http.Handler { return a.Auth.Middleware(api.AdminOnly(h)) }

	// healthchex
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")
	r.Handle("/metrics", a.Metrics.Handler()).Methods("GET")

	// registered ahead of the subrouter so the upgrade is not wrapped by the timeout
	r.HandleFunc("/api/v1/ws/cases", a.Hub.ServeWS).Methods("GET")

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(a.Config.RequestTimeout))

	apiCreate.Handle("/auth/register", http.HandlerFunc(u.RegisterHandler)).Methods("POST")
	apiCreate.Handle("/auth/token", http.HandlerFunc(a.Auth.CreateToken)).Methods("POST")

	apiCreate.Handle("/cases", authed(c.CreateCaseHandler)).Methods("POST")
	apiCreate.Handle("/cases", authed(c.MyCasesHandler)).Methods("GET")
	apiCreate.Handle("/cases/{case_id}", authed(c.CaseByIDHandler)).Methods("GET")
	apiCreate.Handle("/cases/{case_id}", authed(c.UpdateCaseHandler)).Methods("PUT")
	apiCreate.Handle("/cases/{case_id}/documents", authed(c.AddDocumentsHandler)).Methods("POST")
	apiCreate.Handle("/cases/{case_id}/documents/signature", authed(cloudinaryHandler.GenerateSignature)).Methods("POST")

	apiCreate.Handle("/admin/cases", admin(adm.CasesHandler)).Methods("GET")
	apiCreate.Handle("/admin/stats", admin(adm.StatsHandler)).Methods("GET")
	apiCreate.Handle("/admin/cases/{case_id}/status", admin(adm.UpdateStatusHandler)).Methods("PUT")
	apiCreate.Handle("/admin/cases/{case_id}/witnesses", admin(adm.AddWitnessesHandler)).Methods("POST")
	apiCreate.Handle("/admin/cases/{case_id}/witnesses/{witness_id}", admin(adm.RemoveWitnessHandler)).Methods("DELETE")
	apiCreate.Handle("/admin/cases/{case_id}/notify", admin(adm.NotifyHandler)).Methods("POST")
	apiCreate.Handle("/admin/cases/{case_id}/panel", admin(adm.CreatePanelHandler)).Methods("POST")
	apiCreate.Handle("/admin/panels/{panel_id}/activate", admin(adm.ActivatePanelHandler)).Methods("POST")
	apiCreate.Handle("/admin/panel-members", admin(adm.PanelMembersHandler)).Methods("GET")

	apiCreate.Handle("/public/consent/{token}", http.HandlerFunc(pub.ConsentDetailsHandler)).Methods("GET")
	apiCreate.Handle("/public/consent/{token}", http.HandlerFunc(pub.ConsentRespondHandler)).Methods("POST")

	return r
}

// Wire builds the services on top of the stores already set on a and installs the
// router. ctx bounds background work such as the credential cache.
func (a *App) Wire(ctx context.Context) {
	if a.Metrics == nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		a.Metrics = api.NewMetrics(reg)
	}
	a.Auth = api.NewAuth(ctx, a.Users, a.Config.JWTSecret, a.Config.JWTTTL)
	a.Auth.Clock = a.Clock
	a.Hub = NewLiveHub(a.Auth, a.Config.ClientURL)
	publisher := a.Metrics.Publisher(a.Hub)

	validFor := time.Duration(a.Config.ConsentValidDays) * 24 * time.Hour
	var signerOpts []consent.Option
	if a.Clock != nil {
		signerOpts = append(signerOpts, consent.WithClock(a.Clock))
	}
	a.Engine = &lifecycle.Engine{
		Cases:            a.Cases,
		Sequencer:        a.Counters,
		Signer:           consent.NewSigner(a.Config.ConsentSecret, signerOpts...),
		Notifier:         &notify.Gateway{Mailer: a.Mailer, ValidFor: validFor, Clock: a.Clock},
		Publisher:        publisher,
		ClientURL:        a.Config.ClientURL,
		CaseNumberPrefix: a.Config.CaseNumberPrefix,
		ConsentValidDays: a.Config.ConsentValidDays,
		Clock:            a.Clock,
	}
	a.PanelService = &lifecycle.PanelService{
		Cases:     a.Cases,
		Panels:    a.Panels,
		Directory: a.Users,
		Publisher: publisher,
		Clock:     a.Clock,
	}
	if a.Config.MongoTransactions && a.Client != nil {
		a.PanelService.Tx = a.Client
	}
	a.Router = a.New()
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize(ctx context.Context) error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}
	if err := client.Connect(ctx); err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("resolveit-api has connected to the database")

	dbHelper := databases.NewDatabase(&a.Config, client)
	a.Client = client
	a.Cases = databases.NewCaseDatabase(dbHelper)
	a.Panels = databases.NewPanelDatabase(dbHelper)
	a.Users = databases.NewUserDatabase(dbHelper)
	a.Counters = databases.NewCounterDatabase(dbHelper)

	for name, ensure := range map[string]func(context.Context) error{
		"cases":  a.Cases.EnsureIndexes,
		"panels": a.Panels.EnsureIndexes,
		"users":  a.Users.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			zap.S().Errorw("failed to create indexes", "collection", name, "error", err)
			return err
		}
	}

	// a nil *SendGrid must not end up inside the interface
	if sg := notify.NewSendGrid(a.Config.SendgridAPIKey, a.Config.MailFrom, a.Config.MailFromName); sg != nil {
		a.Mailer = sg
	} else {
		zap.S().Warn("SENDGRID_API_KEY not set, consent invites will only be logged")
	}

	a.Wire(ctx)

	if a.Config.DigestSchedule != "" {
		a.Scheduler = scheduler.NewScheduler(a.Cases, a.Mailer, a.Config.DigestRecipient)
		if err := a.Scheduler.Start(a.Config.DigestSchedule); err != nil {
			zap.S().Errorw("failed to schedule stale consent digest", "error", err)
			return err
		}
	}
	return nil
}

// Shutdown stops background jobs, closes live connections and disconnects from mongo
func (a *App) Shutdown(ctx context.Context) {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Hub != nil {
		a.Hub.Close()
	}
	if a.Client != nil {
		if err := a.Client.Disconnect(ctx); err != nil {
			zap.S().Errorw("failed to disconnect from database", "error", err)
		}
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, models.HealthCheckResponse{
		Alive: true,
	})
}
