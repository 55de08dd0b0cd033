// The dora binary serves the medicine-tracking API and drives the scheduled
// reminder emails.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/januhrhammer/dora/dblayer"
	"github.com/januhrhammer/dora/healthz"
	"github.com/januhrhammer/dora/httpmetrics"
	"github.com/januhrhammer/dora/mailer"
	"github.com/januhrhammer/dora/reminder"
	"github.com/januhrhammer/dora/webapi"

	"cloud.google.com/go/firestore"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"github.com/sendgrid/sendgrid-go"
	secretmanagerpb "google.golang.org/genproto/googleapis/cloud/secretmanager/v1"
)

var (
	apiListen   = flag.String("api-listen", "127.0.0.1:8000", "Server address:port for the JSON API endpoint.")
	debugListen = flag.String("debug-listen", "127.0.0.1:8001", "Server address:port for debug endpoint.")
	dataProject = flag.String("data-project", "", "GCP project that contains the application state.")

	sendgridKeySecret = flag.String("sendgrid-key-secret", "", "GCP Secret Manager secret name that contains the SendGrid API key.  Empty disables email.")
	mailFrom          = flag.String("mail-from", "", "Email address reminders are sent from.")
	mailFromName      = flag.String("mail-from-name", "Medicine Tracker", "Display name reminders are sent from.")
	mailTo            = flag.String("mail-to", "", "Email address reminders are sent to.")
	mailToName        = flag.String("mail-to-name", "", "Display name reminders are sent to.")

	patientName      = flag.String("patient-name", "", "Patient name printed in the reorder letter.")
	patientBirthDate = flag.String("patient-birth-date", "", "Patient birth date printed in the reorder letter, e.g. 23.04.1937.")
	mailSignature    = flag.String("mail-signature", "", "Name signing the reorder letter.")
)

// Reminder cadences: prepare the weekly dispenser on Sunday morning; check
// the reorder threshold every day since it can be crossed on any day.
const (
	weeklyReminderHour = 9
	reorderCheckHour   = 10
)

func main() {
	flag.Parse()

	slog.Info("Starting up")
	slog.Info(
		"Flags",
		slog.String("api-listen", *apiListen),
		slog.String("debug-listen", *debugListen),
		slog.String("data-project", *dataProject),
		slog.String("sendgrid-key-secret", *sendgridKeySecret),
		slog.String("mail-from", *mailFrom),
		slog.String("mail-to", *mailTo),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := do(ctx); err != nil {
		slog.ErrorContext(ctx, "Error", slog.Any("err", err))
		os.Exit(255)
	}
}

func do(ctx context.Context) error {
	fstore, err := firestore.NewClient(ctx, *dataProject)
	if err != nil {
		return fmt.Errorf("while creating FireStore client: %w", err)
	}

	var sg *sendgrid.Client
	if *sendgridKeySecret != "" {
		sg, err = newSendgridClient(ctx)
		if err != nil {
			return fmt.Errorf("while creating SendGrid client: %w", err)
		}
	} else {
		slog.InfoContext(ctx, "No SendGrid key secret configured; reminder sends will fail until one is provided")
	}

	db := dblayer.New(fstore)
	mail := mailer.NewSendGrid(sg, *mailFrom, *mailFromName, *mailTo, *mailToName)
	engine := reminder.New(db, db, db, mail, reminder.Config{
		PatientName:      *patientName,
		PatientBirthDate: *patientBirthDate,
		Signature:        *mailSignature,
	})

	// Readiness starts false and flips once the API server is wired up.
	readyz := healthz.New()
	readyz.SetReady(false)

	debugServeMux := http.NewServeMux()
	debugServeMux.Handle("/healthz", healthz.New())
	debugServeMux.Handle("/readyz", readyz)
	debugServeMux.HandleFunc("/debug/pprof/", pprof.Index)
	debugServeMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	debugServeMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	debugServeMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	debugServeMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	debugServer := &http.Server{
		Addr:    *debugListen,
		Handler: debugServeMux,

		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	api := webapi.New(db, engine)
	apiServeMux := http.NewServeMux()
	api.Register(apiServeMux)
	apiHandler := httpmetrics.New(apiServeMux)
	apiHandler.RegisterMetrics()
	apiServer := &http.Server{
		Addr:    *apiListen,
		Handler: apiHandler,

		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	sched := reminder.NewScheduler()
	sunday := time.Sunday
	sched.AddJob(&reminder.Job{
		ID:      "weekly-prepare",
		Weekday: &sunday,
		Hour:    weeklyReminderHour,
		Run:     engine.SendWeeklyReminder,
	})
	sched.AddJob(&reminder.Job{
		ID:   "reorder-check",
		Hour: reorderCheckHour,
		Run: func(ctx context.Context) error {
			_, err := engine.SendReorderReminder(ctx)
			return err
		},
	})

	go func() {
		if err := debugServer.ListenAndServe(); err != nil {
			slog.ErrorContext(ctx, "Debug server died", slog.Any("err", err))
			os.Exit(255)
		}
	}()

	go func() {
		if err := apiServer.ListenAndServe(); err != nil {
			slog.ErrorContext(ctx, "API server died", slog.Any("err", err))
			os.Exit(255)
		}
	}()

	go func() {
		if err := sched.Run(ctx); err != nil {
			slog.InfoContext(ctx, "Scheduler stopped", slog.Any("err", err))
		}
	}()

	readyz.SetReady(true)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	<-signalCh

	readyz.SetReady(false)

	return nil
}

func newSendgridClient(ctx context.Context) (*sendgrid.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	secretClient, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("while creating Secret Manager client: %w", err)
	}
	defer secretClient.Close()

	resp, err := secretClient.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", *dataProject, *sendgridKeySecret),
	})
	if err != nil {
		return nil, fmt.Errorf("while pulling secret: %w", err)
	}

	return sendgrid.NewSendClient(string(resp.GetPayload().GetData())), nil
}
