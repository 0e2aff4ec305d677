package pose

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/rly/ndx-pose/internal/apperrors"
	"github.com/rly/ndx-pose/internal/container"
)

// Defaults for the time-series attributes.
const (
	DefaultSeriesUnit        = "pixels"
	DefaultSeriesDescription = "no description"
	DefaultSeriesComments    = "no comments"
)

// TimeBase selects how a series is timed. Exactly one of Timestamps, From or
// Rate must be set.
type TimeBase struct {
	// Timestamps holds one time per frame, in seconds.
	Timestamps []float64
	// From shares the time base of another series. The array is not copied.
	From *PoseEstimationSeries
	// Rate in Hz, with StartingTime in seconds.
	Rate         float64
	StartingTime float64
}

func (tb TimeBase) kinds() int {
	n := 0
	if tb.Timestamps != nil {
		n++
	}
	if tb.From != nil {
		n++
	}
	if tb.Rate != 0 {
		n++
	}
	return n
}

// PoseEstimationSeries is the estimated position of one keypoint over time.
type PoseEstimationSeries struct {
	container.Base
	Description          string
	Comments             string
	Data                 *mat.Dense
	ReferenceFrame       string
	Unit                 string
	Confidence           []float64
	ConfidenceDefinition string
	Conversion           float64
	Resolution           float64
	Offset               float64

	time TimeBase
}

// SeriesArgs are the inputs to NewPoseEstimationSeries. Zero-valued
// Description, Comments and Unit take their defaults.
type SeriesArgs struct {
	Name                 string
	Description          string
	Comments             string
	Data                 *mat.Dense
	ReferenceFrame       string
	Unit                 string
	Confidence           []float64
	ConfidenceDefinition string
	Time                 TimeBase
}

// NewPoseEstimationSeries validates shapes and the time base. Callers must
// give a reference frame; stored series may lack one since the dataset is
// optional in the stored layout.
func NewPoseEstimationSeries(args SeriesArgs, c Construction) (*PoseEstimationSeries, error) {
	if args.Name == "" {
		return nil, apperrors.New(apperrors.ErrStructure, "", "series name is required")
	}
	s := &PoseEstimationSeries{
		Base:                 container.NewBase(args.Name),
		Description:          orDefault(args.Description, DefaultSeriesDescription),
		Comments:             orDefault(args.Comments, DefaultSeriesComments),
		Data:                 args.Data,
		ReferenceFrame:       args.ReferenceFrame,
		Unit:                 orDefault(args.Unit, DefaultSeriesUnit),
		Confidence:           args.Confidence,
		ConfidenceDefinition: args.ConfidenceDefinition,
		Conversion:           1.0,
		Resolution:           -1.0,
		Offset:               0.0,
		time:                 args.Time,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if args.ReferenceFrame == "" && !c.deserialized() {
		return nil, apperrors.New(apperrors.ErrStructure, container.Path(s), "reference_frame is required")
	}
	return s, nil
}

func (s *PoseEstimationSeries) TypeName() string  { return "PoseEstimationSeries" }
func (s *PoseEstimationSeries) Namespace() string { return container.NamespacePose }

// Validate checks data columns, the confidence values and the time base.
func (s *PoseEstimationSeries) Validate() error {
	path := container.Path(s)
	if s.Data == nil {
		return apperrors.New(apperrors.ErrShape, path, "data is required")
	}
	rows, cols := s.Data.Dims()
	if cols != 2 && cols != 3 {
		return apperrors.New(apperrors.ErrShape, path, "data must have 2 or 3 columns, got %d", cols)
	}
	if s.Confidence != nil && len(s.Confidence) != rows {
		return apperrors.New(apperrors.ErrShape, path,
			"confidence has %d values, data has %d frames", len(s.Confidence), rows)
	}
	if s.ConfidenceDefinition != "" && s.Confidence == nil {
		return apperrors.New(apperrors.ErrStructure, path,
			"confidence_definition describes confidence values and cannot be given without them")
	}

	switch s.time.kinds() {
	case 0:
		return apperrors.New(apperrors.ErrStructure, path, "one of timestamps, linked timestamps or rate is required")
	case 1:
	default:
		return apperrors.New(apperrors.ErrConflict, path, "timestamps, linked timestamps and rate are mutually exclusive")
	}
	if r := s.time.Rate; r != 0 && (!(r > 0) || math.IsInf(r, 1)) {
		return apperrors.New(apperrors.ErrShape, path, "rate must be positive and finite, got %g", r)
	}
	if s.time.Timestamps != nil && len(s.time.Timestamps) != rows {
		return apperrors.New(apperrors.ErrShape, path,
			"timestamps has %d values, data has %d frames", len(s.time.Timestamps), rows)
	}
	if s.time.From != nil {
		ts, err := s.ResolvedTimestamps()
		if err != nil {
			return err
		}
		if ts != nil && len(ts) != rows {
			return apperrors.New(apperrors.ErrShape, path,
				"linked timestamps from %q have %d values, data has %d frames", s.time.From.Name(), len(ts), rows)
		}
	}
	return nil
}

// Frames returns the number of samples.
func (s *PoseEstimationSeries) Frames() int {
	if s.Data == nil {
		return 0
	}
	rows, _ := s.Data.Dims()
	return rows
}

// Timestamps returns the series' own timestamps, or nil when the series is
// rate-timed or linked.
func (s *PoseEstimationSeries) Timestamps() []float64 {
	return s.time.Timestamps
}

// TimestampsFrom returns the series whose time base this one shares, or nil.
func (s *PoseEstimationSeries) TimestampsFrom() *PoseEstimationSeries {
	return s.time.From
}

// Rate returns the sampling rate and starting time. ok is false unless the
// series is rate-timed.
func (s *PoseEstimationSeries) Rate() (rate, startingTime float64, ok bool) {
	if s.time.Rate == 0 {
		return 0, 0, false
	}
	return s.time.Rate, s.time.StartingTime, true
}

// TimeBase returns the time base as given.
func (s *PoseEstimationSeries) TimeBase() TimeBase {
	return s.time
}

// TimeOwner follows linked time bases to the series that holds the data.
func (s *PoseEstimationSeries) TimeOwner() (*PoseEstimationSeries, error) {
	seen := map[*PoseEstimationSeries]bool{}
	cur := s
	for cur.time.From != nil {
		if seen[cur] {
			return nil, apperrors.New(apperrors.ErrLink, container.Path(s), "timestamp links form a cycle through %q", cur.Name())
		}
		seen[cur] = true
		cur = cur.time.From
	}
	return cur, nil
}

// ResolvedTimestamps returns the explicit timestamps this series uses,
// following links. The returned slice is shared with the owning series. A
// rate-timed owner yields nil.
func (s *PoseEstimationSeries) ResolvedTimestamps() ([]float64, error) {
	owner, err := s.TimeOwner()
	if err != nil {
		return nil, err
	}
	return owner.time.Timestamps, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
