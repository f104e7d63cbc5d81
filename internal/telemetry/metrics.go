package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ServerMetrics holds instruments for HTTP server telemetry.
type ServerMetrics struct {
	RequestCounter  metric.Int64Counter
	RequestDuration metric.Float64Histogram
	ErrorCounter    metric.Int64Counter // 5xx only
}

// NewServerMetrics creates the HTTP instruments. Call once at startup.
func NewServerMetrics() (*ServerMetrics, error) {
	meter := otel.Meter("estateapi/http")

	requestCounter, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"http.server.error.count",
		metric.WithDescription("Total number of HTTP server errors (5xx)"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &ServerMetrics{
		RequestCounter:  requestCounter,
		RequestDuration: requestDuration,
		ErrorCounter:    errorCounter,
	}, nil
}

// RecordRequest records one finished request.
func (m *ServerMetrics) RecordRequest(ctx context.Context, method, route, status string, durationMs float64) {
	attrs := metric.WithAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
		attribute.String(AttrHTTPStatusCode, status),
	)

	m.RequestCounter.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, durationMs, attrs)

	if len(status) > 0 && status[0] == '5' {
		m.ErrorCounter.Add(ctx, 1, attrs)
	}
}

// DatabaseMetrics holds instruments for database operations.
type DatabaseMetrics struct {
	QueryCounter  metric.Int64Counter
	QueryDuration metric.Float64Histogram
	QueryErrors   metric.Int64Counter
}

// NewDatabaseMetrics creates the database instruments.
func NewDatabaseMetrics() (*DatabaseMetrics, error) {
	meter := otel.Meter("estateapi/database")

	queryCounter, err := meter.Int64Counter(
		"db.query.count",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, err
	}

	queryDuration, err := meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2000),
	)
	if err != nil {
		return nil, err
	}

	queryErrors, err := meter.Int64Counter(
		"db.query.error.count",
		metric.WithDescription("Total number of database query errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &DatabaseMetrics{
		QueryCounter:  queryCounter,
		QueryDuration: queryDuration,
		QueryErrors:   queryErrors,
	}, nil
}

// RecordQuery records a query with its operation (SELECT, INSERT, ...).
func (d *DatabaseMetrics) RecordQuery(ctx context.Context, operation string, durationMs float64, err error) {
	attrs := metric.WithAttributes(attribute.String(AttrDBOperation, operation))

	d.QueryCounter.Add(ctx, 1, attrs)
	d.QueryDuration.Record(ctx, durationMs, attrs)

	if err != nil {
		d.QueryErrors.Add(ctx, 1, attrs)
	}
}

// AuthMetrics counts credential operations on the backend.
type AuthMetrics struct {
	AuthAttempts metric.Int64Counter
	AuthFailures metric.Int64Counter
}

// NewAuthMetrics creates the authentication instruments.
func NewAuthMetrics() (*AuthMetrics, error) {
	meter := otel.Meter("estateapi/auth")

	authAttempts, err := meter.Int64Counter(
		"auth.attempt.count",
		metric.WithDescription("Total number of authentication attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	authFailures, err := meter.Int64Counter(
		"auth.failure.count",
		metric.WithDescription("Total number of failed authentication attempts"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{AuthAttempts: authAttempts, AuthFailures: authFailures}, nil
}

// RecordAuth records an attempt. method is password, bearer, reset.
func (a *AuthMetrics) RecordAuth(ctx context.Context, method string, success bool) {
	if a == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrAuthMethod, method),
		attribute.Bool(AttrAuthSuccess, success),
	)

	a.AuthAttempts.Add(ctx, 1, attrs)
	if !success {
		a.AuthFailures.Add(ctx, 1, attrs)
	}
}

// ProvisioningMetrics counts sign-up follow-up reconciliation outcomes.
type ProvisioningMetrics struct {
	Outcomes metric.Int64Counter
}

// NewProvisioningMetrics creates the reconciler instruments.
func NewProvisioningMetrics() (*ProvisioningMetrics, error) {
	outcomes, err := otel.Meter("estateapi/provisioning").Int64Counter(
		"provisioning.task.count",
		metric.WithDescription("Provisioning tasks processed, by outcome"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}
	return &ProvisioningMetrics{Outcomes: outcomes}, nil
}

// RecordOutcome records done, retry or failed.
func (p *ProvisioningMetrics) RecordOutcome(ctx context.Context, outcome string) {
	if p == nil {
		return
	}
	p.Outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrOutcome, outcome)))
}

// AuthorityMetrics instruments the client-side authority. Every fetch that
// degrades to an empty default, every result dropped because the principal
// moved on, and every principal change is counted.
type AuthorityMetrics struct {
	FetchDegraded    metric.Int64Counter
	StaleDiscarded   metric.Int64Counter
	PrincipalChanges metric.Int64Counter
}

// NewAuthorityMetrics creates the authority instruments.
func NewAuthorityMetrics() (*AuthorityMetrics, error) {
	meter := otel.Meter("estate/authority")

	degraded, err := meter.Int64Counter(
		"authority.fetch.degraded",
		metric.WithDescription("Fetches that failed and fell back to a safe default"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	stale, err := meter.Int64Counter(
		"authority.result.stale_discarded",
		metric.WithDescription("Fetch results discarded because the principal changed"),
		metric.WithUnit("{result}"),
	)
	if err != nil {
		return nil, err
	}

	changes, err := meter.Int64Counter(
		"authority.principal.changes",
		metric.WithDescription("Principal transitions observed"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, err
	}

	return &AuthorityMetrics{FetchDegraded: degraded, StaleDiscarded: stale, PrincipalChanges: changes}, nil
}

// Degraded records a fetch of resource (roles, profile, kyc) falling back.
func (a *AuthorityMetrics) Degraded(ctx context.Context, resource string) {
	if a == nil {
		return
	}
	a.FetchDegraded.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrResource, resource)))
}

// Stale records a discarded result for resource.
func (a *AuthorityMetrics) Stale(ctx context.Context, resource string) {
	if a == nil {
		return
	}
	a.StaleDiscarded.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrResource, resource)))
}

// PrincipalChanged records a transition; signedIn is false on sign-out.
func (a *AuthorityMetrics) PrincipalChanged(ctx context.Context, signedIn bool) {
	if a == nil {
		return
	}
	a.PrincipalChanges.Add(ctx, 1, metric.WithAttributes(attribute.Bool("signed_in", signedIn)))
}

const (
	AttrHTTPMethod     = "http.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"

	AttrDBOperation = "db.operation"

	AttrAuthMethod  = "auth.method"
	AttrAuthSuccess = "auth.success"

	AttrOutcome = "outcome"
)
