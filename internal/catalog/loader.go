package catalog

import (
	"context"
	"io/fs"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/keystone/internal/log"
	"github.com/zjrosen/keystone/internal/registry"
	"github.com/zjrosen/keystone/internal/tracing"
)

// RegistryName is the name catalog registries report in events.
const RegistryName = "catalog"

// Loader reads every catalog file under a file system root.
type Loader struct {
	fsys      fs.FS
	tracer    trace.Tracer
	observers []registry.Observer
	validate  *validator.Validate
	now       func() time.Time
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithTracer sets the tracer for load spans. Defaults to the global provider.
func WithTracer(t trace.Tracer) LoaderOption {
	return func(l *Loader) { l.tracer = t }
}

// WithObserver attaches obs to the registry of every load.
func WithObserver(obs registry.Observer) LoaderOption {
	return func(l *Loader) {
		if obs != nil {
			l.observers = append(l.observers, obs)
		}
	}
}

// NewLoader creates a loader over fsys.
func NewLoader(fsys fs.FS, opts ...LoaderOption) *Loader {
	l := &Loader{
		fsys:     fsys,
		tracer:   otel.Tracer("github.com/zjrosen/keystone/internal/catalog"),
		validate: newValidator(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// source is one catalog file found by the walk.
type source struct {
	name   string
	format Format
}

// Load reads all files, registers their items, freezes, and checks every
// relation. It returns a Catalog only when nothing failed; otherwise the
// error is a *multierror.Error listing every problem across every file.
func (l *Loader) Load(ctx context.Context) (_ *Catalog, err error) {
	ctx, span := l.tracer.Start(ctx, tracing.SpanCatalogLoad)
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	sources, err := l.sources()
	if err != nil {
		return nil, err
	}

	opts := []registry.Option{registry.WithName(RegistryName)}
	for _, obs := range l.observers {
		opts = append(opts, registry.WithObserver(obs))
	}
	builder := registry.NewByIdentity[*Item](opts...).Builder()

	var result *multierror.Error
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, ferr := range l.loadFile(ctx, builder, src) {
			result = multierror.Append(result, errors.Wrapf(ferr, "%s", src.name))
		}
	}

	view := builder.Freeze()
	for _, derr := range l.link(ctx, view) {
		result = multierror.Append(result, derr)
	}

	span.SetAttributes(
		attribute.Int(tracing.AttrRegistrySize, view.Size()),
		attribute.Int(tracing.AttrErrorCount, errorCount(result)),
	)
	if err := result.ErrorOrNil(); err != nil {
		log.Warn(log.CatCatalog, "catalog load failed", "files", len(sources), "errors", errorCount(result))
		return nil, err
	}

	cat := newCatalog(view, uuid.New(), l.now())
	span.SetAttributes(attribute.String(tracing.AttrCatalogGeneration, cat.Generation().String()))
	log.Info(log.CatCatalog, "catalog loaded",
		"files", len(sources), "items", cat.Size(), "generation", cat.Generation())
	return cat, nil
}

// sources lists catalog files in lexical order, skipping hidden entries.
func (l *Loader) sources() ([]source, error) {
	var out []source
	err := fs.WalkDir(l.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if format, ok := FormatOf(p); ok {
			out = append(out, source{name: p, format: format})
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan catalog")
	}
	if len(out) == 0 {
		log.Warn(log.CatCatalog, "no catalog files found")
	}
	return out, nil
}

// loadFile registers the items of one file. Relations are requested as
// holders first, so targets may be defined later in this or any other file.
func (l *Loader) loadFile(ctx context.Context, b registry.Builder[*Item], src source) []error {
	_, span := l.tracer.Start(ctx, tracing.SpanCatalogFile, trace.WithAttributes(
		attribute.String(tracing.AttrCatalogFile, src.name),
		attribute.String(tracing.AttrCatalogFormat, string(src.format)),
	))
	defer span.End()

	data, err := fs.ReadFile(l.fsys, src.name)
	if err != nil {
		tracing.RecordError(span, err)
		return []error{errors.Wrap(err, "read")}
	}

	def, err := decode(src.name, src.format, data)
	if err != nil {
		tracing.RecordError(span, err)
		return []error{errors.Mark(err, ErrInvalidDefinition)}
	}
	if err := l.validate.Struct(def); err != nil {
		tracing.RecordError(span, err)
		return validationErrors(err)
	}
	span.SetAttributes(attribute.String(tracing.AttrCatalogNamespace, def.Namespace))

	var errs []error
	for _, d := range def.Items {
		key, err := registry.NewKey(def.Namespace, d.Path)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		item := &Item{
			Key:         key,
			Name:        d.Name,
			Description: d.Description,
			Labels:      d.Labels,
			Properties:  d.Properties,
			Source:      src.name,
		}
		if len(d.Relations) > 0 {
			item.Relations = make(map[string]*registry.Holder[*Item], len(d.Relations))
		}
		for name, ref := range d.Relations {
			target, err := ResolveRef(def.Namespace, ref)
			if err != nil {
				errs = append(errs, errors.Wrapf(err, "%s relation %q", key, name))
				continue
			}
			item.Relations[name] = b.HolderFor(target)
		}

		if _, err := b.Register(key, item); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		span.SetAttributes(attribute.Int(tracing.AttrErrorCount, len(errs)))
	}
	return errs
}

// link reports every relation of a registered item whose target never
// registered.
func (l *Loader) link(ctx context.Context, view registry.View[*Item]) []error {
	_, span := l.tracer.Start(ctx, tracing.SpanCatalogLink)
	defer span.End()

	var errs []error
	for key, item := range view.Entries() {
		for _, name := range item.RelationNames() {
			h := item.Relations[name]
			if h.IsBound() {
				continue
			}
			span.AddEvent("dangling", trace.WithAttributes(tracing.KeyAttr(h.Key())))
			// Built fresh rather than wrapping Holder.Get's error, whose
			// freeze hint does not help someone editing catalog files.
			err := errors.Newf("%s: %s relation %q points at %s, which is not defined", item.Source, key, name, h.Key())
			err = errors.Mark(errors.Mark(err, registry.ErrPermanentlyUnresolvedHolder), ErrDanglingReference)
			errs = append(errs, errors.WithHint(err, "define the target item or fix the reference"))
		}
	}
	span.SetAttributes(attribute.Int(tracing.AttrRegistryOrphaned, len(errs)))
	return errs
}

func errorCount(merr *multierror.Error) int {
	if merr == nil {
		return 0
	}
	return len(merr.Errors)
}

// ResolveRef turns a relation target into a key. A target without a
// namespace refers to ns.
func ResolveRef(ns, ref string) (registry.Key, error) {
	if strings.ContainsRune(ref, registry.Separator) {
		return registry.ParseKey(ref)
	}
	return registry.NewKey(ns, ref)
}
