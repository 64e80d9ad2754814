// Package centerline loads centerline samples (points plus per-point radius)
// from files written by centerline extraction tools such as VMTK.
package centerline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"centerlinemetrics/internal/models"
)

// DefaultRadiusArray is the point-data array VMTK writes the maximum
// inscribed sphere radius into
const DefaultRadiusArray = "Radius"

// ErrMissingRadius is returned when the radius array is absent
var ErrMissingRadius = errors.New("radius array not found")

// maxCount bounds every count read from a file header, so products such as
// components*tuples cannot overflow
const maxCount = 1<<31 - 1

// preallocLimit caps slice capacity reserved from header counts; larger
// arrays grow as values are read
const preallocLimit = 1 << 16

// tokenizer splits the body of a legacy VTK file into whitespace separated
// words and supports a single token of lookahead
type tokenizer struct {
	sc     *bufio.Scanner
	peeked *string
}

func newTokenizer(r io.Reader) *tokenizer {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)
	return &tokenizer{sc: sc}
}

// next returns the next token, or io.EOF at the end of input
func (t *tokenizer) next() (string, error) {
	if t.peeked != nil {
		tok := *t.peeked
		t.peeked = nil
		return tok, nil
	}
	if !t.sc.Scan() {
		if err := t.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return t.sc.Text(), nil
}

func (t *tokenizer) peek() (string, error) {
	tok, err := t.next()
	if err != nil {
		return "", err
	}
	t.peeked = &tok
	return tok, nil
}

func (t *tokenizer) mustNext(what string) (string, error) {
	tok, err := t.next()
	if err == io.EOF {
		return "", fmt.Errorf("unexpected end of file reading %s", what)
	}
	return tok, err
}

func (t *tokenizer) int(what string) (int, error) {
	tok, err := t.mustNext(what)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", what, tok, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative %s %d", what, n)
	}
	if n > maxCount {
		return 0, fmt.Errorf("%s %d too large", what, n)
	}
	return n, nil
}

func (t *tokenizer) float(what string) (float64, error) {
	tok, err := t.mustNext(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", what, tok, err)
	}
	return v, nil
}

func (t *tokenizer) floats(n int, what string) ([]float64, error) {
	out := make([]float64, 0, min(n, preallocLimit))
	for i := 0; i < n; i++ {
		v, err := t.float(what)
		if err != nil {
			return nil, fmt.Errorf("%s %d of %d: %w", what, i+1, n, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (t *tokenizer) skip(n int, what string) error {
	for i := 0; i < n; i++ {
		if _, err := t.mustNext(what); err != nil {
			return err
		}
	}
	return nil
}

// ReadVTK parses a legacy ASCII VTK polydata file and returns its points
// together with the point-data array named radiusArray (DefaultRadiusArray
// when empty). Cell data and other attribute arrays are skipped.
func ReadVTK(r io.Reader, radiusArray string) (*models.CenterlineSample, error) {
	if radiusArray == "" {
		radiusArray = DefaultRadiusArray
	}

	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil && header == "" {
		return nil, fmt.Errorf("read vtk header: %w", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(header), "# vtk DataFile") {
		return nil, fmt.Errorf("not a legacy vtk file: header %q", strings.TrimSpace(header))
	}
	title, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read vtk title: %w", err)
	}

	tok := newTokenizer(br)

	format, err := tok.mustNext("file format")
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(format, "ASCII") {
		return nil, fmt.Errorf("unsupported vtk file format %q (only ASCII is supported)", format)
	}

	if kw, err := tok.mustNext("DATASET"); err != nil {
		return nil, err
	} else if !strings.EqualFold(kw, "DATASET") {
		return nil, fmt.Errorf("expected DATASET, got %q", kw)
	}
	dataset, err := tok.mustNext("dataset type")
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(dataset, "POLYDATA") {
		return nil, fmt.Errorf("unsupported vtk dataset %q (expected POLYDATA)", dataset)
	}

	sample := &models.CenterlineSample{Name: strings.TrimSpace(title)}
	var (
		havePoints bool
		inPoint    bool
		count      int // tuples in the current attribute section
	)

	for {
		kw, err := tok.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch strings.ToUpper(kw) {
		case "POINTS":
			n, err := tok.int("point count")
			if err != nil {
				return nil, err
			}
			if _, err := tok.mustNext("point type"); err != nil {
				return nil, err
			}
			coords, err := tok.floats(3*n, "point coordinate")
			if err != nil {
				return nil, err
			}
			sample.Points = make([]models.Point, n)
			for i := range sample.Points {
				sample.Points[i] = models.Point{coords[3*i], coords[3*i+1], coords[3*i+2]}
			}
			havePoints = true

		case "VERTICES", "LINES", "POLYGONS", "TRIANGLE_STRIPS":
			if err := skipCells(tok); err != nil {
				return nil, fmt.Errorf("%s: %w", kw, err)
			}

		case "POINT_DATA", "CELL_DATA":
			n, err := tok.int(kw + " count")
			if err != nil {
				return nil, err
			}
			inPoint = strings.EqualFold(kw, "POINT_DATA")
			if inPoint && havePoints && n != len(sample.Points) {
				return nil, fmt.Errorf("POINT_DATA has %d tuples but file has %d points", n, len(sample.Points))
			}
			count = n

		case "SCALARS":
			name, values, err := readScalars(tok, count)
			if err != nil {
				return nil, fmt.Errorf("SCALARS: %w", err)
			}
			if inPoint && name == radiusArray && values != nil {
				sample.Radii = values
			}

		case "FIELD":
			arrays, err := readField(tok, radiusArray)
			if err != nil {
				return nil, fmt.Errorf("FIELD: %w", err)
			}
			if inPoint && arrays != nil {
				sample.Radii = arrays
			}

		case "VECTORS", "NORMALS":
			if err := tok.skip(2, kw); err != nil {
				return nil, err
			}
			if err := tok.skip(3*count, kw+" value"); err != nil {
				return nil, err
			}

		case "TENSORS":
			if err := tok.skip(2, kw); err != nil {
				return nil, err
			}
			if err := tok.skip(9*count, kw+" value"); err != nil {
				return nil, err
			}

		case "TEXTURE_COORDINATES":
			if _, err := tok.mustNext("texture name"); err != nil {
				return nil, err
			}
			dim, err := tok.int("texture dimension")
			if err != nil {
				return nil, err
			}
			if err := tok.skip(1+dim*count, "texture value"); err != nil {
				return nil, err
			}

		case "COLOR_SCALARS":
			if _, err := tok.mustNext("color scalars name"); err != nil {
				return nil, err
			}
			n, err := tok.int("color scalars components")
			if err != nil {
				return nil, err
			}
			if err := tok.skip(n*count, "color value"); err != nil {
				return nil, err
			}

		case "LOOKUP_TABLE":
			if _, err := tok.mustNext("lookup table name"); err != nil {
				return nil, err
			}
			n, err := tok.int("lookup table size")
			if err != nil {
				return nil, err
			}
			if err := tok.skip(4*n, "lookup table value"); err != nil {
				return nil, err
			}

		case "METADATA":
			if err := skipMetadata(tok); err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("unsupported vtk keyword %q", kw)
		}
	}

	if !havePoints {
		return nil, errors.New("vtk file has no POINTS section")
	}
	if sample.Radii == nil {
		return nil, fmt.Errorf("%w: no point-data array %q", ErrMissingRadius, radiusArray)
	}
	if len(sample.Radii) != len(sample.Points) {
		return nil, fmt.Errorf("radius array has %d values but file has %d points", len(sample.Radii), len(sample.Points))
	}
	return sample, nil
}

// skipCells skips a cell block in either the classic layout
// ("n size" followed by size integers) or the 5.x layout with OFFSETS and
// CONNECTIVITY arrays.
func skipCells(tok *tokenizer) error {
	a, err := tok.int("cell count")
	if err != nil {
		return err
	}
	b, err := tok.int("cell size")
	if err != nil {
		return err
	}

	next, err := tok.peek()
	if err != nil && err != io.EOF {
		return err
	}
	if !strings.EqualFold(next, "OFFSETS") {
		return tok.skip(b, "cell index")
	}

	// OFFSETS <type> a values, CONNECTIVITY <type> b values
	if err := tok.skip(2, "OFFSETS"); err != nil {
		return err
	}
	if err := tok.skip(a, "offset"); err != nil {
		return err
	}
	kw, err := tok.mustNext("CONNECTIVITY")
	if err != nil {
		return err
	}
	if !strings.EqualFold(kw, "CONNECTIVITY") {
		return fmt.Errorf("expected CONNECTIVITY, got %q", kw)
	}
	if err := tok.skip(1, "connectivity type"); err != nil {
		return err
	}
	return tok.skip(b, "connectivity")
}

// readScalars reads a SCALARS block. values is nil for multi-component
// arrays, which cannot hold a radius.
func readScalars(tok *tokenizer, count int) (string, []float64, error) {
	name, err := tok.mustNext("scalars name")
	if err != nil {
		return "", nil, err
	}
	if _, err := tok.mustNext("scalars type"); err != nil {
		return "", nil, err
	}

	comps := 1
	next, err := tok.peek()
	if err != nil && err != io.EOF {
		return "", nil, err
	}
	if n, convErr := strconv.Atoi(next); convErr == nil {
		comps = n
		_, _ = tok.next()
		next, err = tok.peek()
		if err != nil && err != io.EOF {
			return "", nil, err
		}
	}
	if strings.EqualFold(next, "LOOKUP_TABLE") {
		if err := tok.skip(2, "LOOKUP_TABLE"); err != nil {
			return "", nil, err
		}
	}

	if comps != 1 {
		return name, nil, tok.skip(comps*count, "scalar value")
	}
	values, err := tok.floats(count, "scalar value")
	return name, values, err
}

// readField reads a FIELD block and returns the values of the single
// component array named want, or nil if it is absent.
func readField(tok *tokenizer, want string) ([]float64, error) {
	if _, err := tok.mustNext("field name"); err != nil {
		return nil, err
	}
	numArrays, err := tok.int("field array count")
	if err != nil {
		return nil, err
	}

	var found []float64
	for i := 0; i < numArrays; i++ {
		name, err := tok.mustNext("array name")
		if err != nil {
			return nil, err
		}
		if name == "NULL_ARRAY" {
			continue
		}
		comps, err := tok.int("array components")
		if err != nil {
			return nil, err
		}
		tuples, err := tok.int("array tuples")
		if err != nil {
			return nil, err
		}
		if _, err := tok.mustNext("array type"); err != nil {
			return nil, err
		}

		if name == want && comps == 1 {
			found, err = tok.floats(tuples, name+" value")
			if err != nil {
				return nil, err
			}
		} else if err := tok.skip(comps*tuples, name+" value"); err != nil {
			return nil, err
		}

		if next, err := tok.peek(); err == nil && strings.EqualFold(next, "METADATA") {
			_, _ = tok.next()
			if err := skipMetadata(tok); err != nil {
				return nil, err
			}
		}
	}
	return found, nil
}

// skipMetadata handles the empty information block VTK 9 writes after
// arrays ("METADATA INFORMATION 0"). Populated blocks are rejected.
func skipMetadata(tok *tokenizer) error {
	kw, err := tok.mustNext("METADATA")
	if err != nil {
		return err
	}
	if !strings.EqualFold(kw, "INFORMATION") {
		return fmt.Errorf("unsupported METADATA block %q", kw)
	}
	n, err := tok.int("information count")
	if err != nil {
		return err
	}
	if n != 0 {
		return fmt.Errorf("unsupported METADATA with %d information entries", n)
	}
	return nil
}
