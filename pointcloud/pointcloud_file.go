package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chenzhekl/goply"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
)

// NewFromFile returns a pointcloud read in from the given file.
func NewFromFile(fn string, logger golog.Logger) (*Cloud, error) {
	switch filepath.Ext(fn) {
	case ".ply":
		return NewFromPLYFile(fn, logger)
	case ".pcd":
		f, err := os.Open(fn) //nolint:gosec
		if err != nil {
			return nil, err
		}
		defer utils.UncheckedErrorFunc(f.Close)
		return ReadPCD(f)
	default:
		return nil, errors.Errorf("do not know how to read file %q", fn)
	}
}

// NewFromPLYFile returns a pointcloud read in from the given PLY file. A file
// that cannot be opened or parsed is an error; there is no partial result.
func NewFromPLYFile(fn string, logger golog.Logger) (*Cloud, error) {
	logger.Infow("reading PLY", "path", fn)
	f, err := os.Open(fn) //nolint:gosec
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open PLY file %q", fn)
	}
	defer utils.UncheckedErrorFunc(f.Close)
	cloud, err := ReadPLY(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse PLY file %q", fn)
	}
	return cloud, nil
}

// ReadPLY reads the vertex element of a PLY mesh into an unorganized cloud.
func ReadPLY(r io.Reader) (*Cloud, error) {
	ply := goply.New(r)
	vertices := ply.Elements("vertex")
	cloud := NewWithPrealloc(len(vertices))
	for i, v := range vertices {
		x, err := plyFloat(v, "x")
		if err != nil {
			return nil, errors.Wrapf(err, "vertex %d", i)
		}
		y, err := plyFloat(v, "y")
		if err != nil {
			return nil, errors.Wrapf(err, "vertex %d", i)
		}
		z, err := plyFloat(v, "z")
		if err != nil {
			return nil, errors.Wrapf(err, "vertex %d", i)
		}
		cloud.Append(r3.Vector{X: x, Y: y, Z: z})
	}
	return cloud, nil
}

func plyFloat(vertex map[string]interface{}, name string) (float64, error) {
	raw, ok := vertex[name]
	if !ok {
		return 0, errors.Errorf("vertex has no %q property", name)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, errors.Errorf("vertex property %q has unsupported type %T", name, raw)
	}
}

// ToPCD writes the cloud out in PCD format. Organized clouds keep their grid
// layout in the WIDTH/HEIGHT fields with unoccupied cells stored as NaN, the
// PCD convention for invalid points.
func ToPCD(cloud *Cloud, out io.Writer, outputType PCDType) error {
	width, height := cloud.Size(), 1
	if cloud.IsOrganized() {
		width, height = cloud.Width(), cloud.Height()
	}
	_, err := fmt.Fprintf(out, "VERSION .7\n"+
		"FIELDS x y z\n"+
		"SIZE 4 4 4\n"+
		"TYPE F F F\n"+
		"COUNT 1 1 1\n"+
		"WIDTH %d\n"+
		"HEIGHT %d\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n",
		width, height, width*height)
	if err != nil {
		return err
	}

	switch outputType {
	case PCDBinary:
		_, err = fmt.Fprintf(out, "DATA binary\n")
	case PCDAscii:
		_, err = fmt.Fprintf(out, "DATA ascii\n")
	default:
		return errors.Errorf("unsupported pcd output type %d", outputType)
	}
	if err != nil {
		return err
	}
	return writePCDData(cloud, out, outputType)
}

// WritePCDFile writes the cloud to the given path in PCD format.
func WritePCDFile(cloud *Cloud, fn string, outputType PCDType) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return ToPCD(cloud, f, outputType)
}

func writePCDData(cloud *Cloud, out io.Writer, pcdtype PCDType) error {
	var err error
	writePoint := func(p r3.Vector) bool {
		switch pcdtype {
		case PCDBinary:
			buf := make([]byte, 12)
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(p.X)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(p.Y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(p.Z)))
			_, err = out.Write(buf)
		case PCDAscii:
			_, err = fmt.Fprintf(out, "%f %f %f\n", p.X, p.Y, p.Z)
		}
		return err == nil
	}
	if !cloud.IsOrganized() {
		cloud.Iterate(writePoint)
		return err
	}
	nan := math.NaN()
	for y := 0; y < cloud.Height(); y++ {
		for x := 0; x < cloud.Width(); x++ {
			p, occupied := cloud.AtGrid(x, y)
			if !occupied {
				p = r3.Vector{X: nan, Y: nan, Z: nan}
			}
			if !writePoint(p) {
				return err
			}
		}
	}
	return err
}

type pcdHeader struct {
	size   []uint64
	width  uint64
	height uint64
	points uint64
	data   PCDType
}

const pcdCommentChar = "#"

var pcdHeaderFields = []string{"VERSION", "FIELDS", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT", "POINTS", "DATA"}

func parsePCDHeaderLine(line string, index int, header *pcdHeader) error {
	var err error
	name := pcdHeaderFields[index]
	field, value, _ := strings.Cut(line, " ")
	tokens := strings.Split(value, " ")
	if field != name {
		return errors.Errorf("line is supposed to start with %s but is %s", name, line)
	}

	switch name {
	case "VERSION":
		if value != ".7" {
			return errors.Errorf("unsupported pcd version %s", value)
		}
	case "FIELDS":
		if value != "x y z" {
			return errors.Errorf("unsupported pcd fields %s", value)
		}
	case "SIZE":
		if len(tokens) != 3 {
			return errors.New("unexpected number of fields in SIZE line")
		}
		header.size = make([]uint64, len(tokens))
		for i, token := range tokens {
			header.size[i], err = strconv.ParseUint(token, 10, 64)
			if err != nil {
				return errors.Errorf("invalid SIZE field %s", token)
			}
		}
	case "TYPE":
		if value != "F F F" {
			return errors.Errorf("unsupported pcd types %s", value)
		}
	case "COUNT":
		if value != "1 1 1" {
			return errors.Errorf("unsupported pcd counts %s", value)
		}
	case "WIDTH":
		header.width, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Errorf("invalid WIDTH field %s: %s", value, err)
		}
	case "HEIGHT":
		header.height, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Errorf("invalid HEIGHT field %s: %s", value, err)
		}
	case "VIEWPOINT":
		if len(tokens) != 7 {
			return errors.Errorf("unexpected number of fields in VIEWPOINT line. Expected 7, got %d", len(tokens))
		}
	case "POINTS":
		var points uint64
		points, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Errorf("invalid POINTS field %s: %s", value, err)
		}
		if points != header.width*header.height {
			return errors.Errorf("POINTS field %d does not match WIDTH*HEIGHT %d", points, header.width*header.height)
		}
		header.points = points
	case "DATA":
		switch value {
		case "ascii":
			header.data = PCDAscii
		case "binary":
			header.data = PCDBinary
		default:
			return errors.Errorf("unsupported pcd data type %s", value)
		}
	}

	return nil
}

// ReadPCD reads a pcd into a Cloud. A HEIGHT greater than 1 yields an
// organized cloud; NaN cells are left unoccupied.
func ReadPCD(inRaw io.Reader) (*Cloud, error) {
	header := pcdHeader{}
	in := bufio.NewReader(inRaw)
	var line string
	var err error
	headerLineCount := 0
	for headerLineCount < len(pcdHeaderFields) {
		line, err = in.ReadString('\n')
		if err != nil {
			return nil, errors.Errorf("error reading header line %d: %s", headerLineCount, err)
		}
		line, _, _ = strings.Cut(line, pcdCommentChar)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := parsePCDHeaderLine(line, headerLineCount, &header); err != nil {
			return nil, err
		}
		headerLineCount++
	}
	switch header.data {
	case PCDAscii:
		return readPCDAscii(in, header)
	case PCDBinary:
		return readPCDBinary(in, header)
	default:
		return nil, errors.Errorf("unsupported pcd data type %v", header.data)
	}
}

func newCloudFromPCDHeader(header pcdHeader) *Cloud {
	if header.height > 1 {
		return NewOrganized(int(header.width), int(header.height))
	}
	return NewWithPrealloc(int(header.points))
}

func setPCDPoint(cloud *Cloud, i int, p r3.Vector) {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) {
		return
	}
	if cloud.IsOrganized() {
		cloud.SetGrid(i%cloud.Width(), i/cloud.Width(), p)
		return
	}
	cloud.Append(p)
}

func readPCDAscii(in *bufio.Reader, header pcdHeader) (*Cloud, error) {
	cloud := newCloudFromPCDHeader(header)
	for i := 0; i < int(header.points); i++ {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		tokens := strings.Split(line, " ")
		if len(tokens) != 3 {
			return nil, errors.Errorf("unexpected number of fields in point %d", i)
		}
		point := make([]float64, len(tokens))
		for j, token := range tokens {
			point[j], err = strconv.ParseFloat(token, 64)
			if err != nil {
				return nil, errors.Errorf("invalid point %d field %s: %s", i, token, err)
			}
		}
		setPCDPoint(cloud, i, r3.Vector{X: point[0], Y: point[1], Z: point[2]})
	}
	return cloud, nil
}

func readPCDBinary(in *bufio.Reader, header pcdHeader) (*Cloud, error) {
	cloud := newCloudFromPCDHeader(header)
	for i := 0; i < int(header.points); i++ {
		pointBuf := make([]float64, 3)
		for j := 0; j < 3; j++ {
			buf := make([]byte, header.size[j])
			if _, err := io.ReadFull(in, buf); err != nil {
				return nil, err
			}
			pointBuf[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
		}
		setPCDPoint(cloud, i, r3.Vector{X: pointBuf[0], Y: pointBuf[1], Z: pointBuf[2]})
	}
	return cloud, nil
}
