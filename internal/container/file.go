package container

import (
	"time"

	"github.com/rly/ndx-pose/internal/apperrors"
)

// File is the persistence root. Objects become link targets once they are
// reachable from a File.
type File struct {
	Base
	Identifier         string
	SessionDescription string
	SessionStartTime   time.Time

	// SchemaVersion is the ndx-pose version the file was read with. Empty for
	// files built in memory.
	SchemaVersion string

	subject    *Subject
	devices    *Collection[*Device]
	processing *Collection[*ProcessingModule]
}

// NewFile returns an empty root.
func NewFile(identifier, sessionDescription string, start time.Time) *File {
	f := &File{
		Base:               NewBase("root"),
		Identifier:         identifier,
		SessionDescription: sessionDescription,
		SessionStartTime:   start,
	}
	f.devices = NewCollection[*Device](f)
	f.processing = NewCollection[*ProcessingModule](f)
	return f
}

func (f *File) TypeName() string  { return "NWBFile" }
func (f *File) Namespace() string { return NamespaceCore }

// SetParent always fails: a File is a root.
func (f *File) SetParent(p Object) error {
	if p == nil {
		return nil
	}
	return apperrors.New(apperrors.ErrConflict, "/", "a file cannot be nested inside %s", Path(p))
}

// AddDevice attaches d under /general/devices.
func (f *File) AddDevice(d *Device) error {
	return f.devices.Add(d)
}

// CreateDevice builds a Device and attaches it.
func (f *File) CreateDevice(name, description, manufacturer string) (*Device, error) {
	d := NewDevice(name, description, manufacturer)
	if err := f.AddDevice(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Device returns the attached device called name.
func (f *File) Device(name string) (*Device, error) {
	return f.devices.Get(name)
}

// Devices returns attached devices in insertion order.
func (f *File) Devices() []*Device {
	return f.devices.All()
}

// SetSubject attaches s under /general/subject, replacing nothing: a file has
// at most one subject.
func (f *File) SetSubject(s *Subject) error {
	if f.subject != nil && f.subject != s {
		return apperrors.New(apperrors.ErrConflict, "/general/subject", "file already has a subject")
	}
	if err := s.SetParent(f); err != nil {
		return err
	}
	f.subject = s
	return nil
}

// Subject returns the file's subject, or nil.
func (f *File) Subject() *Subject {
	return f.subject
}

// AddProcessingModule attaches m under /processing.
func (f *File) AddProcessingModule(m *ProcessingModule) error {
	return f.processing.Add(m)
}

// CreateProcessingModule builds a ProcessingModule and attaches it.
func (f *File) CreateProcessingModule(name, description string) (*ProcessingModule, error) {
	m := NewProcessingModule(name, description)
	if err := f.AddProcessingModule(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ProcessingModule returns the module called name.
func (f *File) ProcessingModule(name string) (*ProcessingModule, error) {
	return f.processing.Get(name)
}

// ProcessingModules returns modules in insertion order.
func (f *File) ProcessingModules() []*ProcessingModule {
	return f.processing.All()
}

// Children lists the subject, devices and processing modules.
func (f *File) Children() []Object {
	var out []Object
	if f.subject != nil {
		out = append(out, f.subject)
	}
	out = append(out, f.devices.Objects()...)
	return append(out, f.processing.Objects()...)
}

// ChildPath places children in the standard NWB locations.
func (f *File) ChildPath(child Object) string {
	switch child.(type) {
	case *Device:
		return "general/devices/" + child.Name()
	case *Subject:
		return "general/subject"
	case *ProcessingModule:
		return "processing/" + child.Name()
	default:
		return child.Name()
	}
}

// ProcessingModule groups related processed data objects.
type ProcessingModule struct {
	Base
	Description string

	data *Collection[Object]
}

// NewProcessingModule returns an empty module.
func NewProcessingModule(name, description string) *ProcessingModule {
	m := &ProcessingModule{Base: NewBase(name), Description: description}
	m.data = NewCollection[Object](m)
	return m
}

func (m *ProcessingModule) TypeName() string  { return "ProcessingModule" }
func (m *ProcessingModule) Namespace() string { return NamespaceCore }

// Add attaches data objects. Names must be unique within the module.
func (m *ProcessingModule) Add(objs ...Object) error {
	return m.data.Add(objs...)
}

// Get returns the data object called name.
func (m *ProcessingModule) Get(name string) (Object, error) {
	return m.data.Get(name)
}

// Children returns the data objects in insertion order.
func (m *ProcessingModule) Children() []Object {
	return m.data.All()
}
