package pose

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rly/ndx-pose/internal/apperrors"
)

// Source says who is constructing an object.
type Source int

const (
	// UserConstructed objects are built by calling code.
	UserConstructed Source = iota
	// Deserialized objects are rebuilt from a file.
	Deserialized
)

func (s Source) String() string {
	if s == Deserialized {
		return "deserialized"
	}
	return "user"
}

// Strictness controls how count mismatches are reported.
type Strictness int

const (
	StrictnessWarn Strictness = iota
	StrictnessError
	StrictnessOff
)

func (s Strictness) String() string {
	switch s {
	case StrictnessError:
		return "error"
	case StrictnessOff:
		return "off"
	default:
		return "warn"
	}
}

// ParseStrictness accepts "warn", "error" or "off".
func ParseStrictness(s string) (Strictness, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "warn":
		return StrictnessWarn, nil
	case "error":
		return StrictnessError, nil
	case "off":
		return StrictnessOff, nil
	default:
		return StrictnessWarn, fmt.Errorf("invalid strictness %q (must be warn, error or off)", s)
	}
}

// Notifier receives deprecation notices. Notices are never errors.
type Notifier interface {
	Deprecated(path, message string)
}

// Notice is one recorded deprecation.
type Notice struct {
	Path    string
	Message string
}

// Recorder is a Notifier that keeps every notice.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Deprecated(path, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, Notice{Path: path, Message: message})
}

// Notices returns a copy of what has been recorded.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Messages returns only the notice texts.
func (r *Recorder) Messages() []string {
	var out []string
	for _, n := range r.Notices() {
		out = append(out, n.Message)
	}
	return out
}

// ZapNotifier logs notices at warn level.
type ZapNotifier struct {
	Logger *zap.Logger
}

func (z ZapNotifier) Deprecated(path, message string) {
	if z.Logger == nil {
		return
	}
	z.Logger.Warn(message, zap.String("path", path), zap.String("kind", "deprecation"))
}

type nopNotifier struct{}

func (nopNotifier) Deprecated(string, string) {}

// Construction is threaded through every constructor.
type Construction struct {
	Source     Source
	Strictness Strictness
	Notifier   Notifier
}

// User returns the construction mode for calling code with warn strictness
// and no notifier.
func User() Construction {
	return Construction{Source: UserConstructed, Strictness: StrictnessWarn}
}

// FromStorage returns the construction mode used by the read path.
func FromStorage() Construction {
	return Construction{Source: Deserialized, Strictness: StrictnessOff}
}

// WithNotifier returns a copy of c that reports to n.
func (c Construction) WithNotifier(n Notifier) Construction {
	c.Notifier = n
	return c
}

// WithStrictness returns a copy of c with strictness s.
func (c Construction) WithStrictness(s Strictness) Construction {
	c.Strictness = s
	return c
}

func (c Construction) deserialized() bool {
	return c.Source == Deserialized
}

func (c Construction) notifier() Notifier {
	if c.Notifier == nil {
		return nopNotifier{}
	}
	return c.Notifier
}

// deprecated reports a notice for user-constructed objects only.
func (c Construction) deprecated(path, message string) {
	if c.deserialized() {
		return
	}
	c.notifier().Deprecated(path, message)
}

// countMismatch applies the strictness policy. Deserialized objects are
// never checked.
func (c Construction) countMismatch(path, message string) error {
	if c.deserialized() {
		return nil
	}
	switch c.Strictness {
	case StrictnessOff:
		return nil
	case StrictnessError:
		return apperrors.New(apperrors.ErrDeprecated, path, "%s", message)
	default:
		c.notifier().Deprecated(path, message)
		return nil
	}
}
