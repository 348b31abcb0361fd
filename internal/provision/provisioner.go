// internal/provision/provisioner.go
package provision

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"tenant-metrics/internal/metrics"
	"tenant-metrics/internal/model"
	"tenant-metrics/internal/registry"
)

var (
	ErrInvalidRequest  = errors.New("invalid provisioning request")
	ErrPrefixCollision = errors.New("table prefix already owned by another tenant")
)

// Store is the persistence the provisioner needs; *storage.Storage satisfies it.
type Store interface {
	CreateTenant(ctx context.Context, t *model.Tenant, addr *model.Address) error
	DeleteTenant(ctx context.Context, id uuid.UUID) error
	GetTenant(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
	FindTenantByPrefix(ctx context.Context, prefix string) (*model.Tenant, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, u *model.User) error
	LinkUser(ctx context.Context, tenantID, userID uuid.UUID) error
	CreateCredentials(ctx context.Context, creds []model.Credential) (int, error)
	DeleteCredentials(ctx context.Context, tenantID uuid.UUID) error
	ApplyDDL(ctx context.Context, statements []string) error
}

// Notifier delivers the provisioned event to an outbound webhook.
type Notifier interface {
	Notify(ctx context.Context, url string, event model.TenantProvisioned) error
}

// EventPublisher pushes the provisioned event onto the message broker.
type EventPublisher interface {
	PublishProvisioned(ctx context.Context, event model.TenantProvisioned) error
}

type Credentials struct {
	MetaAccountID    string `json:"meta_account_id,omitempty"`
	GoogleCustomerID string `json:"google_customer_id,omitempty"`
	LeadSourceToken  string `json:"leadsource_token,omitempty"`
	ExternalCRMToken string `json:"extcrm_token,omitempty"`
	WebhookURL       string `json:"webhook_url,omitempty"`
}

type Request struct {
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	LogoURL     *string        `json:"logo_url,omitempty"`
	Address     *model.Address `json:"address,omitempty"`
	Credentials *Credentials   `json:"credentials,omitempty"`
}

type Result struct {
	TenantID           uuid.UUID `json:"tenant_id"`
	TablePrefix        string    `json:"table_prefix"`
	CredentialsCreated int       `json:"credentials_created"`
	WebhookFired       bool      `json:"webhook_fired"`
	EventPublished     bool      `json:"event_published"`
	UserInvited        bool      `json:"user_invited"`
	Reprovisioned      bool      `json:"reprovisioned"`
	Message            string    `json:"message"`
	Warnings           []string  `json:"warnings,omitempty"`
}

type Provisioner struct {
	store      Store
	registry   registry.Registry
	notifier   Notifier
	publisher  EventPublisher
	webhookURL string
	logger     *zap.Logger
	now        func() time.Time
}

type Option func(*Provisioner)

// WithNotifier enables the outbound webhook. defaultURL is used when the
// request carries no webhook URL of its own.
func WithNotifier(n Notifier, defaultURL string) Option {
	return func(p *Provisioner) {
		p.notifier = n
		p.webhookURL = defaultURL
	}
}

func WithPublisher(pub EventPublisher) Option {
	return func(p *Provisioner) { p.publisher = pub }
}

func NewProvisioner(store Store, reg registry.Registry, logger *zap.Logger, opts ...Option) *Provisioner {
	p := &Provisioner{
		store:    store,
		registry: reg,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return fmt.Errorf("%w: invalid email %q", ErrInvalidRequest, r.Email)
	}
	return nil
}

// Provision creates a tenant, its registry entries and its physical tables.
// Either all three exist afterwards or none of them do. Re-provisioning an
// existing tenant (same name, same prefix) is a no-op for data that already
// exists.
func (p *Provisioner) Provision(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		metrics.Provisionings.WithLabelValues("invalid").Inc()
		return nil, err
	}
	name := strings.TrimSpace(req.Name)

	prefix, err := TablePrefix(name)
	if err != nil {
		metrics.Provisionings.WithLabelValues("invalid").Inc()
		return nil, err
	}

	existing, err := p.store.FindTenantByPrefix(ctx, prefix)
	if err != nil {
		metrics.Provisionings.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("check prefix %q: %w", prefix, err)
	}
	if existing != nil && !strings.EqualFold(existing.Name, name) {
		metrics.Provisionings.WithLabelValues("collision").Inc()
		return nil, fmt.Errorf("%w: %q is used by %q", ErrPrefixCollision, prefix, existing.Name)
	}

	fresh := existing == nil
	tenant := existing
	if fresh {
		tenant = &model.Tenant{
			ID:          uuid.New(),
			Name:        name,
			TablePrefix: prefix,
			LogoURL:     req.LogoURL,
			Email:       req.Email,
		}
	}
	log := p.logger.With(
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("table_prefix", prefix),
		zap.Bool("fresh", fresh),
	)

	if fresh {
		if err := p.store.CreateTenant(ctx, tenant, req.Address); err != nil {
			// Lost a race with a concurrent provisioning of the same prefix.
			if errors.Is(err, model.ErrPrefixInUse) {
				metrics.Provisionings.WithLabelValues("collision").Inc()
				return nil, fmt.Errorf("%w: %q", ErrPrefixCollision, prefix)
			}
			metrics.Provisionings.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("create tenant: %w", err)
		}
	}

	entries := Entries(tenant.ID, prefix)
	if err := p.registry.Register(ctx, entries); err != nil {
		metrics.Provisionings.WithLabelValues("failed").Inc()
		return nil, p.rollback(ctx, log, tenant.ID, fresh, fmt.Errorf("register tables: %w", err))
	}

	if err := p.store.ApplyDDL(ctx, BuildDDL(tenant.ID, prefix)); err != nil {
		metrics.Provisionings.WithLabelValues("failed").Inc()
		return nil, p.rollback(ctx, log, tenant.ID, fresh, fmt.Errorf("create tables: %w", err))
	}

	res := &Result{
		TenantID:      tenant.ID,
		TablePrefix:   prefix,
		Reprovisioned: !fresh,
	}
	log.Info("Tenant tables provisioned", zap.Int("tables", len(entries)))

	// Everything below is best-effort: reported, never rolled back.
	invited, linkErr := p.linkContact(ctx, tenant.ID, req.Email)
	if linkErr != nil {
		p.warn(log, res, "user", linkErr)
	}
	res.UserInvited = invited

	if req.Credentials != nil {
		n, err := p.store.CreateCredentials(ctx, credentialPlaceholders(tenant.ID, req.Credentials))
		res.CredentialsCreated = n
		if err != nil {
			p.warn(log, res, "credentials", err)
		} else {
			metrics.SideEffects.WithLabelValues("credentials", "ok").Inc()
		}
	}

	event := model.TenantProvisioned{
		TenantID:    tenant.ID,
		TenantName:  tenant.Name,
		TablePrefix: prefix,
		Tables:      lo.Map(entries, func(e model.RegistryEntry, _ int) string { return e.TableName }),
		OccurredAt:  p.now().UTC(),
	}

	if url := p.resolveWebhookURL(req); url != "" && p.notifier != nil {
		if err := p.notifier.Notify(ctx, url, event); err != nil {
			p.warn(log, res, "webhook", err)
		} else {
			res.WebhookFired = true
			metrics.SideEffects.WithLabelValues("webhook", "ok").Inc()
		}
	}

	if p.publisher != nil {
		if err := p.publisher.PublishProvisioned(ctx, event); err != nil {
			p.warn(log, res, "event", err)
		} else {
			res.EventPublished = true
			metrics.SideEffects.WithLabelValues("event", "ok").Inc()
		}
	}

	res.Message = statusMessage(name, req.Email, fresh, invited, linkErr == nil)
	metrics.Provisionings.WithLabelValues(lo.Ternary(fresh, "created", "reprovisioned")).Inc()
	log.Info("Tenant provisioned",
		zap.Bool("user_invited", invited),
		zap.Int("credentials_created", res.CredentialsCreated),
		zap.Bool("webhook_fired", res.WebhookFired),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}

// rollback undoes the tenant and registry rows of a fresh tenant. Existing
// tenants are left as they were.
func (p *Provisioner) rollback(ctx context.Context, log *zap.Logger, tenantID uuid.UUID, fresh bool, cause error) error {
	if !fresh {
		return cause
	}
	log.Warn("Provisioning failed, rolling back", zap.Error(cause))

	// The caller's context may be the reason we failed.
	ctx = context.WithoutCancel(ctx)
	var errs []error
	if err := p.registry.DeleteForTenant(ctx, tenantID); err != nil {
		errs = append(errs, fmt.Errorf("rollback registry: %w", err))
	}
	if err := p.store.DeleteTenant(ctx, tenantID); err != nil {
		errs = append(errs, fmt.Errorf("rollback tenant: %w", err))
	}
	if len(errs) > 0 {
		log.Error("Rollback incomplete", zap.Errors("errors", errs))
		metrics.Provisionings.WithLabelValues("rollback_failed").Inc()
	}
	return errors.Join(append([]error{cause}, errs...)...)
}

func (p *Provisioner) warn(log *zap.Logger, res *Result, kind string, err error) {
	log.Warn("Provisioning side effect failed", zap.String("kind", kind), zap.Error(err))
	metrics.SideEffects.WithLabelValues(kind, "failed").Inc()
	res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", kind, err))
}

// linkContact attaches the contact user, creating an invited user when none
// exists. It reports whether a new user was invited.
func (p *Provisioner) linkContact(ctx context.Context, tenantID uuid.UUID, email string) (bool, error) {
	user, err := p.store.FindUserByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	invited := false
	if user == nil {
		user = &model.User{ID: uuid.New(), Email: email, Status: model.UserStatusInvited}
		if err := p.store.CreateUser(ctx, user); err != nil {
			return false, err
		}
		invited = true
	}
	if err := p.store.LinkUser(ctx, tenantID, user.ID); err != nil {
		return invited, err
	}
	return invited, nil
}

func (p *Provisioner) resolveWebhookURL(req Request) string {
	if req.Credentials != nil && req.Credentials.WebhookURL != "" {
		return req.Credentials.WebhookURL
	}
	return p.webhookURL
}

func credentialPlaceholders(tenantID uuid.UUID, c *Credentials) []model.Credential {
	return []model.Credential{
		{TenantID: tenantID, Channel: model.ChannelGoogle, Key: "customer_id", Value: c.GoogleCustomerID},
		{TenantID: tenantID, Channel: model.ChannelMeta, Key: "ad_account_id", Value: c.MetaAccountID},
		{TenantID: tenantID, Channel: model.ChannelLeadSource, Key: "api_token", Value: c.LeadSourceToken},
		{TenantID: tenantID, Channel: model.ChannelExternalCRM, Key: "api_token", Value: c.ExternalCRMToken},
	}
}

func statusMessage(name, email string, fresh, invited, linked bool) string {
	var b strings.Builder
	if fresh {
		fmt.Fprintf(&b, "Tenant %q created.", name)
	} else {
		fmt.Fprintf(&b, "Tenant %q already existed; schema verified.", name)
	}
	switch {
	case !linked:
		fmt.Fprintf(&b, " Contact user %s could not be linked.", email)
	case invited:
		fmt.Fprintf(&b, " New user invited: %s.", email)
	default:
		fmt.Fprintf(&b, " Existing user %s linked to the tenant.", email)
	}
	return b.String()
}

// Deprovision drops a tenant's tables, access function, registry entries,
// credentials and tenant row.
func (p *Provisioner) Deprovision(ctx context.Context, tenantID uuid.UUID) error {
	tenant, err := p.store.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	entries, err := p.registry.ListForTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	tables := lo.Map(entries, func(e model.RegistryEntry, _ int) string { return e.TableName })

	if err := p.store.ApplyDDL(ctx, BuildDropDDL(tenant.TablePrefix, tables)); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	if err := p.registry.DeleteForTenant(ctx, tenantID); err != nil {
		return err
	}
	if err := p.store.DeleteCredentials(ctx, tenantID); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	if err := p.store.DeleteTenant(ctx, tenantID); err != nil {
		return err
	}
	p.logger.Info("Tenant deprovisioned",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("tables", len(tables)),
	)
	return nil
}
