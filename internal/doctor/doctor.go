// Package doctor checks a loaded ordergate configuration against the machine
// it will run on: storage, audit log directory, lock, venue, listeners and
// schedule overlap.
package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mattjoyce/ordergate/internal/config"
	"github.com/mattjoyce/ordergate/internal/lock"
	"github.com/mattjoyce/ordergate/internal/scheduler"
	"github.com/mattjoyce/ordergate/internal/secure"
	"github.com/mattjoyce/ordergate/internal/state"
	"github.com/mattjoyce/ordergate/internal/storage"
	"github.com/mattjoyce/ordergate/internal/venue/alpaca"
	"github.com/mattjoyce/ordergate/internal/webhook"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor runs environment checks on a config that already passed
// config.Validate.
type Doctor struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result. It opens the state database
// read-mostly to inspect the stored snapshot.
func (d *Doctor) Validate(ctx context.Context) *Result {
	r := &Result{Valid: true}

	d.checkState(ctx, r)
	d.checkLogDir(r)
	d.checkLock(r)
	d.checkDispatch(r)
	d.checkVenue(r)
	d.checkAPI(r)
	d.checkSchedules(r)
	d.checkWebhooks(r)
	d.checkSecurity(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) checkState(ctx context.Context, r *Result) {
	path := d.cfg.State.Path
	if err := storage.CheckLocalFilesystem(path); err != nil {
		d.addError(r, "state", "state.path", err.Error())
		return
	}

	var sealer state.Sealer
	if key := d.cfg.State.EncryptionKey; key != "" {
		raw, err := secure.ParseKey(key)
		if err != nil {
			d.addError(r, "state", "state.encryption_key", err.Error())
			return
		}
		s, err := secure.NewSealer(raw)
		if err != nil {
			d.addError(r, "state", "state.encryption_key", err.Error())
			return
		}
		sealer = s
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		d.addWarning(r, "state", "state.path", fmt.Sprintf("%s does not exist yet; serve will create it", path))
		return
	}

	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		d.addError(r, "state", "state.path", err.Error())
		return
	}
	defer db.Close()

	snap, err := state.NewStore(db, sealer).Load(ctx)
	switch {
	case errors.Is(err, state.ErrNoSnapshot):
		d.addWarning(r, "state", "", "no snapshot stored yet")
	case errors.Is(err, state.ErrSealed):
		d.addError(r, "state", "state.encryption_key", "stored snapshot is sealed; configure the key it was sealed with")
	case err != nil:
		d.addError(r, "state", "state.path", err.Error())
	case time.Since(snap.SavedAt) > 7*24*time.Hour:
		d.addWarning(r, "state", "", fmt.Sprintf("snapshot is stale (saved %s)", snap.SavedAt.Format(time.RFC3339)))
	}
	if err == nil && sealer == nil {
		d.addWarning(r, "state", "state.encryption_key", "snapshots are stored unsealed")
	}
}

func (d *Doctor) checkLogDir(r *Result) {
	dir := d.cfg.Dispatch.LogDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		d.addError(r, "dispatch", "dispatch.log_dir", fmt.Sprintf("cannot create %s: %v", dir, err))
		return
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		d.addError(r, "dispatch", "dispatch.log_dir", fmt.Sprintf("%s is not writable: %v", dir, err))
		return
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
}

func (d *Doctor) checkLock(r *Result) {
	path := d.cfg.LockPath()
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return
	}
	l, err := lock.AcquirePIDLock(path)
	if errors.Is(err, lock.ErrLocked) {
		d.addWarning(r, "lock", "", "a desk is already serving from this data directory: "+err.Error())
		return
	}
	if err != nil {
		d.addError(r, "lock", "", err.Error())
		return
	}
	_ = l.Release()
}

func (d *Doctor) checkDispatch(r *Result) {
	switch iv := d.cfg.Dispatch.MinInterval; {
	case iv == 0:
		d.addWarning(r, "dispatch", "dispatch.min_interval", "throttle disabled; every order in a queue is submitted back to back")
	case iv < 100*time.Millisecond:
		d.addWarning(r, "dispatch", "dispatch.min_interval", fmt.Sprintf("%s is shorter than most venue rate limits allow", iv))
	}
}

func (d *Doctor) checkVenue(r *Result) {
	v := d.cfg.Venue
	switch v.Kind {
	case config.VenuePaper:
		if len(v.PaperRejectSymbols) > 0 {
			d.addWarning(r, "venue", "venue.paper_reject_symbols",
				fmt.Sprintf("paper venue will fault on %s", strings.Join(v.PaperRejectSymbols, ", ")))
		}
	case config.VenueAlpaca:
		base := v.BaseURL
		if base == "" {
			base = alpaca.PaperBaseURL
		}
		if u, err := url.Parse(base); err == nil && !strings.HasPrefix(u.Host, "paper-") {
			d.addWarning(r, "venue", "venue.base_url", fmt.Sprintf("%s is a live trading endpoint; orders spend real money", u.Host))
		}
		if v.Timeout <= 0 {
			d.addWarning(r, "venue", "venue.timeout", "no request timeout; a stuck venue call blocks the drain")
		}
	}
}

func (d *Doctor) checkAPI(r *Result) {
	a := d.cfg.API
	if !a.Enabled {
		return
	}
	if a.Auth.APIKey != "" {
		d.addWarning(r, "api", "api.auth.api_key", "admin key grants every scope; prefer scoped tokens")
	}
	if host, _, err := net.SplitHostPort(a.Listen); err == nil {
		if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
			d.addWarning(r, "api", "api.listen", fmt.Sprintf("%s listens on every interface", a.Listen))
		}
	}
	for i, tok := range a.Auth.Tokens {
		if len(tok.Token) < 16 {
			d.addWarning(r, "api", fmt.Sprintf("api.auth.tokens[%d].token", i), "token is shorter than 16 characters")
		}
	}
}

func (d *Doctor) checkSchedules(r *Result) {
	dispatchedBySignal := make(map[string]string)
	if w := d.cfg.Webhooks; w != nil {
		for _, ep := range w.Endpoints {
			if ep.Dispatch {
				dispatchedBySignal[ep.Queue] = ep.Path
			}
		}
	}
	for i, s := range d.cfg.Schedules {
		field := fmt.Sprintf("schedules[%d]", i)
		if s.Every > 0 && s.Every < scheduler.DefaultTickInterval {
			d.addWarning(r, "schedules", field+".every",
				fmt.Sprintf("%s is shorter than the %s scheduler tick", s.Every, scheduler.DefaultTickInterval))
		}
		if path, ok := dispatchedBySignal[s.Queue]; ok {
			d.addWarning(r, "schedules", field+".queue",
				fmt.Sprintf("queue %q is also sent on every signal to %s; the schedule will usually find it empty", s.Queue, path))
		}
	}
}

func (d *Doctor) checkWebhooks(r *Result) {
	w := d.cfg.Webhooks
	if w == nil {
		return
	}
	if _, err := webhook.FromConfig(w); err != nil {
		d.addError(r, "webhooks", "webhooks.endpoints", err.Error())
	}
	if d.cfg.API.Enabled && w.Listen == d.cfg.API.Listen {
		d.addError(r, "webhooks", "webhooks.listen", fmt.Sprintf("%s is already used by the API server", w.Listen))
	}
	if host, _, err := net.SplitHostPort(w.Listen); err == nil {
		if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
			d.addWarning(r, "webhooks", "webhooks.listen", fmt.Sprintf("%s listens on every interface", w.Listen))
		}
	}
	for i, ep := range w.Endpoints {
		if ep.Secret != "" && len(ep.Secret) < 16 {
			d.addWarning(r, "webhooks", fmt.Sprintf("webhooks.endpoints[%d].secret", i), "secret is shorter than 16 characters")
		}
	}
}

func (d *Doctor) checkSecurity(r *Result) {
	hash := d.cfg.Security.PasswordHash
	if hash == "" {
		d.addWarning(r, "security", "security.password_hash", "shell is not password protected")
		return
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		d.addError(r, "security", "security.password_hash", "not a bcrypt hash: "+err.Error())
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid {
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	} else {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		writeIssue(&b, "ERROR", e)
	}
	for _, w := range r.Warnings {
		writeIssue(&b, "WARN ", w)
	}
	return b.String()
}

func writeIssue(b *strings.Builder, level string, i Issue) {
	if i.Field != "" {
		fmt.Fprintf(b, "  %s [%s] %s: %s\n", level, i.Category, i.Field, i.Message)
		return
	}
	fmt.Fprintf(b, "  %s [%s] %s\n", level, i.Category, i.Message)
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
