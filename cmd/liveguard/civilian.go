package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"LiveGuard/internal/auth"
	"LiveGuard/internal/device"
	"LiveGuard/internal/models"
	"LiveGuard/internal/orchestrator"
	"LiveGuard/internal/submission"
	"LiveGuard/pkg/notification"
)

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	remember := fs.Bool("remember", false, "remember the email for next time")
	agency := fs.Bool("agency", false, "sign in to the agency console")
	_ = fs.Parse(args)

	session := a.session
	if *agency {
		session = auth.NewSession(a.local, a.api, auth.WithClientType(string(models.RoleAgency)))
	}
	if *email == "" && *remember {
		if saved, err := a.local.RememberedEmail(ctx); err == nil {
			*email = saved
		}
	}
	p, err := session.Login(ctx, *email, *password, *remember)
	if err != nil {
		return err
	}
	return a.print(p)
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	return a.session.Logout(ctx)
}

func cmdWhoami(ctx context.Context, a *app, _ []string) error {
	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	p, err := a.session.RefreshProfile(ctx)
	if err != nil {
		return err
	}
	return a.print(p)
}

// sendLink stands in for the system SMS composer.
func sendLink(_ context.Context, link string) error {
	fmt.Fprintln(os.Stderr, "open:", link)
	return nil
}

func (a *app) flow(loc device.Locator) *submission.Flow {
	sms := notification.NewEmergencySMS(notification.SMSConfig{
		Platform:      a.cfg.SMS.Platform,
		MaxRecipients: a.cfg.SMS.MaxRecipients,
	}, notification.LauncherFunc(sendLink))
	return submission.NewFlow(a.alerts, a.local, loc,
		submission.WithSMS(sms),
		submission.WithLocationTimeout(a.cfg.Poll.LocationTimeout),
		submission.WithLogger(a.log),
	)
}

func cmdSubmit(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	typ := fs.String("type", string(models.AlertTypeOther), "FIRE_INCIDENCE | ACCIDENT | ROBBERY | MEDICAL | OTHER")
	priority := fs.String("priority", string(models.PriorityHigh), "CRITICAL | HIGH | MEDIUM | LOW")
	desc := fs.String("desc", "", "what is happening")
	lat := fs.Float64("lat", 0, "device latitude")
	lon := fs.Float64("lon", 0, "device longitude")
	offline := fs.Bool("offline", false, "treat the device as offline")
	confirm := fs.Bool("yes", false, "send even when offline")
	notify := fs.Bool("notify", true, "text the emergency contacts after sending")
	follow := fs.Bool("follow", false, "follow the alert status after sending")
	_ = fs.Parse(args)

	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	loc := device.NewStatic(*lat, *lon)
	f := a.flow(loc)

	m, err := f.Mount(ctx)
	if err != nil {
		return err
	}
	if m.Banner != nil {
		fmt.Fprintf(os.Stderr, "retrying unsent %s alert from %s\n", m.Banner.AlertType, m.Banner.SavedAt.Format("15:04"))
	}

	form := submission.Form{
		AlertType:   models.AlertType(strings.ToUpper(*typ)),
		Priority:    models.Priority(strings.ToUpper(*priority)),
		Description: *desc,
	}
	res, err := f.Submit(ctx, form, submission.Options{
		Online:         func() bool { return !*offline },
		ConfirmOffline: *confirm,
	})
	switch {
	case errors.Is(err, submission.ErrOfflineConfirmationRequired):
		return fmt.Errorf("device is offline, rerun with -yes to send anyway")
	case err != nil && submission.Retryable(err):
		return fmt.Errorf("%w (saved, rerun submit to retry)", err)
	case err != nil:
		return err
	}

	if *notify {
		f.NotifyContacts(ctx, res.Alert, res.Address)
	}
	if err := a.print(res.Alert); err != nil {
		return err
	}
	if *follow {
		return a.follow(ctx, res.AlertID(), loc)
	}
	return nil
}

func cmdStatus(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	id := fs.Int64("id", 0, "alert id")
	lat := fs.Float64("lat", 0, "device latitude for live location")
	lon := fs.Float64("lon", 0, "device longitude for live location")
	noLocation := fs.Bool("no-location", false, "do not share live location")
	_ = fs.Parse(args)

	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	loc := device.NewStatic(*lat, *lon)
	if *noLocation {
		loc.SetPermission(device.PermissionDenied)
	}
	return a.follow(ctx, *id, loc)
}

func (a *app) orchestrator(id int64, loc device.Locator, opts ...orchestrator.Option) *orchestrator.Orchestrator {
	opts = append([]orchestrator.Option{
		orchestrator.WithConfig(orchestrator.ConfigFrom(a.cfg.Poll)),
		orchestrator.WithMetrics(a.metrics),
		orchestrator.WithLogger(a.log),
	}, opts...)
	return orchestrator.New(id, a.alerts, a.local, loc, opts...)
}

// follow prints the status view on every change until the alert ends or the
// user interrupts.
func (a *app) follow(ctx context.Context, id int64, loc device.Locator) error {
	views := make(chan orchestrator.View, 8)
	o := a.orchestrator(id, loc, orchestrator.OnChange(func(v orchestrator.View) {
		select {
		case views <- v:
		default:
		}
	}))

	o.Focus(ctx)
	defer o.Blur()

	var last models.AlertStatus
	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-views:
			if v.PollError != "" {
				fmt.Fprintln(os.Stderr, v.PollError)
				o.DismissError()
				continue
			}
			if v.Status == last && !v.ShowRatingPrompt {
				continue
			}
			last = v.Status
			if err := a.print(v); err != nil {
				return err
			}
			if v.ShowRatingPrompt {
				fmt.Fprintf(os.Stderr, "rate the response with: liveguard rate -id %d -stars 1..5\n", id)
				return o.DismissRating(ctx)
			}
			if v.Status == models.StatusCancelled {
				return nil
			}
		}
	}
}

func cmdCancel(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	id := fs.Int64("id", 0, "alert id")
	_ = fs.Parse(args)

	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	loc := device.NewStatic(0, 0)
	loc.SetPermission(device.PermissionDenied)
	o := a.orchestrator(*id, loc)
	o.Focus(ctx)
	defer o.Blur()

	if err := o.Cancel(ctx); err != nil {
		return err
	}
	return a.print(o.View(time.Now()))
}

func cmdRate(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("rate", flag.ExitOnError)
	id := fs.Int64("id", 0, "alert id")
	stars := fs.Int("stars", 5, "rating 1..5")
	_ = fs.Parse(args)

	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	if err := a.alerts.RateAlert(ctx, *id, *stars); err != nil {
		return err
	}
	if err := a.local.MarkRated(ctx, *id); err != nil {
		a.log.Warn("mark rated", zap.Int64("alert_id", *id), zap.Error(err))
	}
	return nil
}

func cmdHistory(ctx context.Context, a *app, _ []string) error {
	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	list, err := a.alerts.FetchAlertHistory(ctx)
	if err != nil {
		return err
	}
	return a.print(list)
}

func cmdContacts(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("contacts", flag.ExitOnError)
	name := fs.String("name", "", "contact name (add)")
	phone := fs.String("phone", "", "contact phone (add)")
	id := fs.String("id", "", "contact id (remove)")
	_ = fs.Parse(args)

	switch fs.Arg(0) {
	case "", "list":
	case "add":
		if _, err := a.local.AddContact(ctx, *name, *phone); err != nil {
			return err
		}
	case "remove":
		if err := a.local.RemoveContact(ctx, *id); err != nil {
			return err
		}
	default:
		return fmt.Errorf("contacts: unknown action %q (list, add, remove)", fs.Arg(0))
	}
	list, err := a.local.Contacts(ctx)
	if err != nil {
		return err
	}
	return a.print(list)
}
