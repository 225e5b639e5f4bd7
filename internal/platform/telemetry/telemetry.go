// Package telemetry sets up OpenTelemetry tracing for the sign-up service
// and opens a server span for every HTTP request. Spans started further down
// (the confirmation dispatcher, for one) become children of the request span.
//
// Tracing is opt-in: without an OTLP endpoint Setup returns a provider whose
// tracer records nothing and no global provider is registered.
package telemetry

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/campadventure/signup/telemetry"

// Config holds the tracing settings.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// OTLPEndpoint is the collector's OTLP/HTTP URL, e.g. http://otel:4318.
	OTLPEndpoint string
	// TracingEnabled nil means enabled whenever an endpoint is set.
	TracingEnabled *bool
	// SampleRate is the fraction of new traces kept, 0 to 1.
	SampleRate float64
}

func (c *Config) tracingOn() bool {
	if c.TracingEnabled == nil {
		return true
	}
	return *c.TracingEnabled
}

func (c *Config) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "camp-server"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.SampleRate <= 0 || c.SampleRate > 1 {
		c.SampleRate = 1.0
	}
}

// BoolPtr is a helper for Config.TracingEnabled.
func BoolPtr(b bool) *bool { return &b }

// Provider owns the tracer provider for the process.
type Provider struct {
	cfg    Config
	sdk    *sdktrace.TracerProvider
	tracer trace.Tracer
	prop   propagation.TextMapPropagator
}

// Option adjusts Setup.
type Option func(*setupOptions)

type setupOptions struct {
	exporter sdktrace.SpanExporter
	sync     bool
}

// WithExporter replaces the OTLP exporter. Spans are batched.
func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(o *setupOptions) { o.exporter = exp }
}

// withSyncExporter exports each span as it ends.
func withSyncExporter(exp sdktrace.SpanExporter) Option {
	return func(o *setupOptions) { o.exporter, o.sync = exp, true }
}

// Setup builds the provider and, when tracing is live, registers it and the
// W3C trace context propagator globally.
func Setup(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	cfg.applyDefaults()
	var so setupOptions
	for _, o := range opts {
		o(&so)
	}

	p := &Provider{
		cfg:    cfg,
		tracer: noop.NewTracerProvider().Tracer(instrumentationName),
		prop:   propagation.TraceContext{},
	}
	if !cfg.tracingOn() || (cfg.OTLPEndpoint == "" && so.exporter == nil) {
		return p, nil
	}

	exp := so.exporter
	if exp == nil {
		var err error
		exp, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
		if err != nil {
			return nil, fmt.Errorf("creating otlp exporter: %w", err)
		}
	}

	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	)

	export := sdktrace.WithBatcher(exp)
	if so.sync {
		export = sdktrace.WithSyncer(exp)
	}
	p.sdk = sdktrace.NewTracerProvider(
		export,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)
	p.tracer = p.sdk.Tracer(instrumentationName)

	otel.SetTracerProvider(p.sdk)
	otel.SetTextMapPropagator(p.prop)
	return p, nil
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool { return p.sdk != nil }

// Tracer returns the provider's tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}

// Middleware opens a server span per request named after the route pattern.
// An inbound traceparent header makes it a child of the caller's span.
func (p *Provider) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if p.sdk == nil {
				return next(c)
			}
			req := c.Request()
			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}

			ctx := p.prop.Extract(req.Context(), propagation.HeaderCarrier(req.Header))
			ctx, span := p.tracer.Start(ctx, "HTTP "+req.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", req.Method),
					attribute.String("http.route", route),
				))
			defer span.End()
			c.SetRequest(req.WithContext(ctx))

			if id := c.Param("id"); id != "" {
				span.SetAttributes(attribute.String("registration.session_id", id))
			}
			if rid, ok := c.Get("request_id").(string); ok && rid != "" {
				span.SetAttributes(attribute.String("http.request_id", rid))
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			span.SetAttributes(attribute.Int("http.status_code", status))
			if status >= 500 {
				span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
				if err != nil {
					span.RecordError(err)
				}
			}
			return err
		}
	}
}
