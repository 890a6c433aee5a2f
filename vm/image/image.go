// Package image stores actor programs, and optional initial heap contents,
// as canonical CBOR files.
package image

import (
	"errors"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/chazu/actorvm/vm"
)

// FormatVersion is written into every encoded image.
const FormatVersion = "1.0.0"

// supportedFormats is the range of format versions Decode accepts.
var supportedFormats = mustConstraint("^1.0")

var (
	ErrFormat  = errors.New("image: unsupported format")
	ErrCorrupt = errors.New("image: corrupt data")
)

// Image is a loadable actor: a program plus the values its heap starts with.
type Image struct {
	Format  string
	Name    string
	Program vm.Program
	Heap    []vm.Value
}

// New returns an image of the current format.
func New(name string, program vm.Program, heap ...vm.Value) *Image {
	return &Image{Format: FormatVersion, Name: name, Program: program, Heap: heap}
}

// Options returns the actor options that load the image's name and heap.
func (img *Image) Options() []vm.ActorOption {
	var opts []vm.ActorOption
	if img.Name != "" {
		opts = append(opts, vm.WithName(img.Name))
	}
	if len(img.Heap) > 0 {
		opts = append(opts, vm.WithHeap(img.Heap))
	}
	return opts
}

// Encode serializes img. An empty Format is written as FormatVersion.
func Encode(img *Image) ([]byte, error) {
	w := wireImage{
		Format:  img.Format,
		Name:    img.Name,
		Program: make([]wireInstruction, len(img.Program)),
	}
	if w.Format == "" {
		w.Format = FormatVersion
	}
	for i, ins := range img.Program {
		w.Program[i] = toWireInstruction(ins)
	}
	if len(img.Heap) > 0 {
		w.Heap = make([]wireValue, len(img.Heap))
		for i, v := range img.Heap {
			w.Heap[i] = toWireValue(v)
		}
	}
	return cborEncMode.Marshal(w)
}

// Decode parses an image, checks its format version and validates the
// program.
func Decode(data []byte) (*Image, error) {
	var w wireImage
	if err := cborDecMode.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := checkFormat(w.Format); err != nil {
		return nil, err
	}

	img := &Image{
		Format:  w.Format,
		Name:    w.Name,
		Program: make(vm.Program, len(w.Program)),
	}
	for i, wi := range w.Program {
		img.Program[i] = fromWireInstruction(wi)
	}
	if err := img.Program.Validate(); err != nil {
		return nil, fmt.Errorf("image %q: %w", w.Name, err)
	}
	for i, wv := range w.Heap {
		v, err := fromWireValue(wv)
		if err != nil {
			return nil, fmt.Errorf("image %q: heap cell %d: %w", w.Name, i, err)
		}
		img.Heap = append(img.Heap, v)
	}
	return img, nil
}

func checkFormat(format string) error {
	v, err := semver.NewVersion(format)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrFormat, format, err)
	}
	if !supportedFormats.Check(v) {
		return fmt.Errorf("%w %s (supported: %s)", ErrFormat, v, supportedFormats)
	}
	return nil
}

// ReadFile reads and decodes the image at path.
func ReadFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// WriteFile encodes img and writes it to path.
func WriteFile(path string, img *Image) error {
	data, err := Encode(img)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func mustConstraint(c string) *semver.Constraints {
	cs, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return cs
}
