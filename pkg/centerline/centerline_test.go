package centerline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"centerlinemetrics/internal/models"
)

func TestReadVTK(t *testing.T) {
	t.Parallel()

	f, err := os.Open(filepath.Join("testdata", "centerline.vtk"))
	require.NoError(t, err)
	defer f.Close()

	sample, err := ReadVTK(f, "")
	require.NoError(t, err)

	assert.Equal(t, []models.Point{{0, 0, 0}, {3, 4, 0}, {3, 4, 12}, {3, 4, 20}}, sample.Points)
	assert.Equal(t, []float64{1.5, 2, 2.25, 0.5}, sample.Radii)
	assert.Equal(t, "vtk output", sample.Name)
}

func TestReadVTKFieldArraysAndOffsets(t *testing.T) {
	t.Parallel()

	f, err := os.Open(filepath.Join("testdata", "centerline_v51.vtk"))
	require.NoError(t, err)
	defer f.Close()

	sample, err := ReadVTK(f, DefaultRadiusArray)
	require.NoError(t, err)

	assert.Equal(t, []models.Point{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}, sample.Points)
	assert.Equal(t, []float64{0.75, 1, 1.25}, sample.Radii)
}

func TestReadVTKCustomRadiusArray(t *testing.T) {
	t.Parallel()

	f, err := os.Open(filepath.Join("testdata", "centerline.vtk"))
	require.NoError(t, err)
	defer f.Close()

	sample, err := ReadVTK(f, "Curvature")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, sample.Radii)
}

func TestReadVTKErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not vtk":       "hello\nworld\n",
		"binary":        "# vtk DataFile Version 3.0\nt\nBINARY\nDATASET POLYDATA\n",
		"grid":          "# vtk DataFile Version 3.0\nt\nASCII\nDATASET STRUCTURED_POINTS\n",
		"no points":     "# vtk DataFile Version 3.0\nt\nASCII\nDATASET POLYDATA\n",
		"short points":  "# vtk DataFile Version 3.0\nt\nASCII\nDATASET POLYDATA\nPOINTS 2 float\n0 0 0 1\n",
		"bad number":    "# vtk DataFile Version 3.0\nt\nASCII\nDATASET POLYDATA\nPOINTS 1 float\n0 zero 0\n",
		"bad keyword":   "# vtk DataFile Version 3.0\nt\nASCII\nDATASET POLYDATA\nPOINTS 1 float\n0 0 0\nBOGUS 1\n",
		"count differs": "# vtk DataFile Version 3.0\nt\nASCII\nDATASET POLYDATA\nPOINTS 1 float\n0 0 0\nPOINT_DATA 2\n",
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadVTK(strings.NewReader(body), "")
			assert.Error(t, err)
		})
	}
}

func TestReadVTKHugeCounts(t *testing.T) {
	t.Parallel()

	const head = "# vtk DataFile Version 3.0\nt\nASCII\nDATASET POLYDATA\n"
	cases := map[string]struct {
		body string
		msg  string
	}{
		"points":      {head + "POINTS 999999999999999999 float\n0 0 0\n", "too large"},
		"below cap":   {head + "POINTS 1000000000 float\n0 0 0 1 1 1\n", "point coordinate 7 of 3000000000"},
		"field array": {head + "POINTS 1 float\n0 0 0\nPOINT_DATA 1\nFIELD f 1\nRadius 1 999999999 float\n1\n", "Radius value 2 of 999999999"},
		"components":  {head + "POINTS 1 float\n0 0 0\nPOINT_DATA 1\nFIELD f 1\nV 2147483647 2147483647 float\n1\n", "unexpected end of file"},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadVTK(strings.NewReader(c.body), "")
			require.Error(t, err)
			assert.ErrorContains(t, err, c.msg)
		})
	}
}

func TestReadVTKMissingRadius(t *testing.T) {
	t.Parallel()

	body := "# vtk DataFile Version 3.0\nt\nASCII\nDATASET POLYDATA\nPOINTS 1 float\n0 0 0\n" +
		"POINT_DATA 1\nSCALARS Other float\nLOOKUP_TABLE default\n1\n"
	_, err := ReadVTK(strings.NewReader(body), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingRadius))
}

func TestReadCSV(t *testing.T) {
	t.Parallel()

	f, err := os.Open(filepath.Join("testdata", "centerline.csv"))
	require.NoError(t, err)
	defer f.Close()

	sample, err := ReadCSV(f, "")
	require.NoError(t, err)

	assert.Equal(t, []models.Point{{0, 0, 0}, {1, 0, 0}, {3, 0, 0}}, sample.Points)
	assert.Equal(t, []float64{1.5, 2, 0}, sample.Radii)
}

func TestReadCSVErrors(t *testing.T) {
	t.Parallel()

	_, err := ReadCSV(strings.NewReader(""), "")
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("x,y,radius\n1,2,3\n"), "")
	assert.ErrorContains(t, err, `"z"`)

	_, err = ReadCSV(strings.NewReader("x,y,z\n1,2,3\n"), "")
	assert.True(t, errors.Is(err, ErrMissingRadius))

	_, err = ReadCSV(strings.NewReader("x,y,z,radius\n1,2,3,abc\n"), "")
	assert.ErrorContains(t, err, "line 2")
}

func TestReadCSVCustomRadiusColumn(t *testing.T) {
	t.Parallel()

	body := "x,y,z,radius,MaximumInscribedSphereRadius\n0,0,0,9,1.25\n"
	sample, err := ReadCSV(strings.NewReader(body), "MaximumInscribedSphereRadius")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.25}, sample.Radii)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	sample, err := Load(filepath.Join("testdata", "centerline.vtk"), "")
	require.NoError(t, err)
	assert.Equal(t, "centerline", sample.Name)
	assert.Len(t, sample.Points, 4)

	sample, err = Load(filepath.Join("testdata", "centerline.csv"), "")
	require.NoError(t, err)
	assert.Equal(t, "centerline", sample.Name)
	assert.Len(t, sample.Radii, 3)

	_, err = Load(filepath.Join("testdata", "centerline.vtp"), "")
	assert.Error(t, err)

	tmp := filepath.Join(t.TempDir(), "points.txt")
	require.NoError(t, os.WriteFile(tmp, []byte("1 2 3"), 0644))
	_, err = Load(tmp, "")
	assert.ErrorContains(t, err, "unsupported centerline file extension")
}
