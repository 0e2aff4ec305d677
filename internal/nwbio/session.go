// Package nwbio reads and writes pose data in container files.
//
// A Session owns one open file. Write renders a container.File through the
// object mappers and replaces the stored tree; Read rebuilds the objects from
// whatever supported schema version the file was written with.
//
// Example:
//
//	s, err := nwbio.Open("session.nwb.db", nwbio.WithConfig(cfg), nwbio.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	if err := s.Write(f); err != nil {
//	    return err
//	}
//	back, err := s.Read()
package nwbio

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/rly/ndx-pose/internal/builder"
	"github.com/rly/ndx-pose/internal/config"
	"github.com/rly/ndx-pose/internal/container"
	"github.com/rly/ndx-pose/internal/mapper"
	"github.com/rly/ndx-pose/internal/pose"
	"github.com/rly/ndx-pose/internal/schema"
	"github.com/rly/ndx-pose/internal/store/sqlite"
)

// Session is one open container file.
type Session struct {
	store  *sqlite.Store
	types  *mapper.TypeMap
	cfg    *config.Config
	logger *zap.Logger
}

// Option configures Open.
type Option func(*Session)

// WithLogger sets the session logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithConfig sets the configuration. The default is config.Default().
func WithConfig(c *config.Config) Option {
	return func(s *Session) { s.cfg = c }
}

// WithTypeMap replaces the mapper registry used by this session.
func WithTypeMap(m *mapper.TypeMap) Option {
	return func(s *Session) { s.types = m }
}

// Open opens or creates the container file at path.
//
// The caller MUST call Close() when done.
func Open(path string, opts ...Option) (*Session, error) {
	s := &Session{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.cfg == nil {
		s.cfg = config.Default()
	}
	if s.types == nil {
		s.types = mapper.NewTypeMap()
	}
	s.logger = s.logger.With(zap.String("file", path))

	st, err := sqlite.Open(path, sqlite.Options{
		BusyTimeout: s.cfg.Store.BusyTimeout,
		Logger:      s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open container file: %w", err)
	}
	s.store = st
	s.logger.Debug("session opened", zap.Strings("types", s.types.Types()))
	return s, nil
}

// Path returns the container file path.
func (s *Session) Path() string { return s.store.Path() }

// Notifier returns the notifier that session-built objects should report
// deprecations to.
func (s *Session) Notifier() pose.Notifier {
	return pose.ZapNotifier{Logger: s.logger}
}

// Construction returns the user construction mode configured for this
// session, so callers building objects get the configured count-mismatch
// policy and the session's notifier.
func (s *Session) Construction() pose.Construction {
	return s.cfg.Construction(s.Notifier())
}

// Close closes the container file.
func (s *Session) Close() error {
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}

// Write stores f, replacing the file's previous content.
func (s *Session) Write(f *container.File) error {
	return s.WriteContext(context.Background(), f)
}

// WriteContext stores f with context support. The rendered tree is checked
// against the schema before anything is written.
func (s *Session) WriteContext(ctx context.Context, f *container.File) error {
	root, err := mapper.Build(f, s.types)
	if err != nil {
		return fmt.Errorf("failed to render file: %w", err)
	}
	if err := schema.Validate(root); err != nil {
		return fmt.Errorf("rendered tree does not match schema %s: %w", schema.Version, err)
	}
	if err := s.store.WriteContext(ctx, root); err != nil {
		return fmt.Errorf("failed to write container file: %w", err)
	}
	f.SchemaVersion = schema.Version

	s.logger.Info("wrote file",
		zap.String("schema_version", schema.Version),
		zap.Int("objects", countObjects(f)))
	return nil
}

// Read rebuilds the stored file.
func (s *Session) Read() (*container.File, error) {
	return s.ReadContext(context.Background())
}

// ReadContext rebuilds the stored file with context support.
func (s *Session) ReadContext(ctx context.Context) (*container.File, error) {
	root, err := s.store.ReadContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read container file: %w", err)
	}
	f, err := mapper.Construct(root, s.types, mapper.WithNotifier(s.Notifier()))
	if err != nil {
		return nil, fmt.Errorf("failed to construct objects: %w", err)
	}
	s.logger.Info("read file",
		zap.String("schema_version", f.SchemaVersion),
		zap.Int("objects", countObjects(f)))
	return f, nil
}

// Validate checks the stored tree. Files in the current layout are checked
// against the schema; every supported layout must also construct cleanly.
func (s *Session) Validate() error {
	return s.ValidateContext(context.Background())
}

// ValidateContext is Validate with context support.
func (s *Session) ValidateContext(ctx context.Context) error {
	root, err := s.store.ReadContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to read container file: %w", err)
	}
	version := root.AttrString(mapper.AttrPoseVersion)
	layout, err := schema.LayoutFor(version)
	if err != nil {
		return err
	}
	if layout == schema.LayoutSkeleton {
		if err := schema.Validate(root); err != nil {
			return err
		}
	}
	if _, err := mapper.Construct(root, s.types); err != nil {
		return err
	}
	s.logger.Debug("file is valid",
		zap.String("schema_version", version),
		zap.Stringer("layout", layout))
	return nil
}

// Upgrade rewrites a file written with an older schema version in the
// current layout. Object ids are kept. It reports whether anything changed.
func (s *Session) Upgrade() (bool, error) {
	return s.UpgradeContext(context.Background())
}

// UpgradeContext is Upgrade with context support.
func (s *Session) UpgradeContext(ctx context.Context) (bool, error) {
	f, err := s.ReadContext(ctx)
	if err != nil {
		return false, err
	}
	if schema.Compare(f.SchemaVersion, schema.Version) == 0 {
		return false, nil
	}
	from := f.SchemaVersion
	if err := s.WriteContext(ctx, f); err != nil {
		return false, err
	}
	s.logger.Info("upgraded file",
		zap.String("from", from),
		zap.String("to", schema.Version))
	return true, nil
}

// Tree returns the stored builder tree without constructing objects.
func (s *Session) Tree() (*builder.Group, error) {
	return s.store.Read()
}

// Describe writes a table of every stored object.
func (s *Session) Describe(w io.Writer) error {
	f, err := s.Read()
	if err != nil {
		return err
	}
	container.Describe(w, f)
	return nil
}

func countObjects(f *container.File) int {
	n := 0
	_ = container.Walk(f, func(container.Object) error {
		n++
		return nil
	})
	return n
}
