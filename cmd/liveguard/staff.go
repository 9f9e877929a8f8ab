package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"LiveGuard/internal/admin"
	"LiveGuard/internal/agency"
	"LiveGuard/internal/models"
)

func cmdAgency(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("agency", flag.ExitOnError)
	ack := fs.Int64("ack", 0, "acknowledge this assignment")
	by := fs.String("by", "", "acknowledged by (with -ack)")
	eta := fs.Int("eta", 0, "estimated arrival in minutes (with -ack)")
	message := fs.String("message", "", "response message (with -ack)")
	contact := fs.String("contact", "", "responder phone (with -ack)")
	setStatus := fs.Int64("set-status", 0, "update the status of this assignment")
	status := fs.String("status", "", "RESPONDING | RESOLVED (with -set-status)")
	watch := fs.Bool("watch", false, "keep polling and print the queue on every change")
	_ = fs.Parse(args)

	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	c := agency.NewConsole(a.api,
		agency.WithHub(a.hub),
		agency.WithSchedule(a.cfg.Poll.AssignmentSchedule),
		agency.WithTick(a.cfg.Poll.TickInterval),
		agency.WithMetrics(a.metrics),
	)
	defer c.Stop()

	if err := c.Reload(ctx); err != nil {
		return err
	}
	switch {
	case *ack != 0:
		if _, err := c.Acknowledge(ctx, *ack, agency.AckForm{
			AcknowledgedBy:   *by,
			EstimatedArrival: *eta,
			ResponseMessage:  *message,
			ResponderContact: *contact,
		}); err != nil {
			return err
		}
		c.Select(ctx, *ack)
	case *setStatus != 0:
		if err := c.UpdateStatus(ctx, *setStatus, models.AlertStatus(strings.ToUpper(*status))); err != nil {
			return err
		}
		c.Select(ctx, *setStatus)
	}
	if !*watch {
		return a.print(c.View(time.Now()))
	}

	sub := c.Subscribe()
	defer sub.Close()
	if err := c.Start(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-sub.Events():
			// tick 只刷新计时
			if ev.Name == "tick" {
				continue
			}
			var v agency.View
			if err := ev.Decode(&v); err != nil {
				return err
			}
			if v.ListError != "" {
				fmt.Fprintln(os.Stderr, v.ListError)
				continue
			}
			if err := a.print(v); err != nil {
				return err
			}
		}
	}
}

func cmdAdmin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	status := fs.String("status", "", "alert status filter")
	typ := fs.String("type", "", "alert type filter")
	priority := fs.String("priority", "", "priority filter")
	channel := fs.String("channel", "", "notification channel filter")
	alertID := fs.Int64("alert", 0, "alert id")
	agencyID := fs.Int64("agency", 0, "agency id")
	userID := fs.Int64("user", 0, "user id")
	_ = fs.Parse(args)

	if err := a.requireLogin(ctx); err != nil {
		return err
	}
	v, err := admin.New(a.api)
	if err != nil {
		return err
	}

	switch fs.Arg(0) {
	case "", "dashboard":
		return a.result(v.Dashboard(ctx))
	case "alerts":
		if *alertID != 0 {
			return a.result(v.Alert(ctx, *alertID))
		}
		return a.result(v.Alerts(ctx, models.AdminAlertFilter{
			Status:   models.AlertStatus(strings.ToUpper(*status)),
			Type:     models.AlertType(strings.ToUpper(*typ)),
			Priority: models.Priority(strings.ToUpper(*priority)),
		}))
	case "assign":
		msg, err := v.Assign(ctx, *alertID, *agencyID)
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil
	case "agencies":
		if *agencyID != 0 {
			return a.result(v.Agency(ctx, *agencyID))
		}
		return a.result(v.Agencies(ctx))
	case "users":
		return a.result(v.Users(ctx))
	case "activate", "deactivate":
		return a.result(v.SetUserActive(ctx, *userID, fs.Arg(0) == "activate"))
	case "notifications":
		return a.result(v.Notifications(ctx, models.NotificationFilter{Channel: *channel}))
	case "reports":
		return a.result(v.Reports(ctx))
	case "settings":
		// admin settings key=value ...
		if fs.NArg() > 1 {
			values := make(map[string]string, fs.NArg()-1)
			for _, kv := range fs.Args()[1:] {
				k, val, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("settings: expected key=value, got %q", kv)
				}
				values[k] = val
			}
			return a.result(v.UpdateSettings(ctx, values))
		}
		return a.result(v.Settings(ctx))
	default:
		return fmt.Errorf("admin: unknown view %q", fs.Arg(0))
	}
}

// result prints v unless err is set.
func (a *app) result(v interface{}, err error) error {
	if err != nil {
		return err
	}
	return a.print(v)
}
