package cfcache

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/cfgrid/cfstore"
)

// IndexFile is the name of the disk index inside a cache directory.
const IndexFile = "aux.dat"

const tableVersion = 1

// Entry is one index row: one w-plane and Mueller element of a kernel file.
// Many rows reference the same file.
type Entry struct {
	PA        float64      `yaml:"pa"`
	Frequency float64      `yaml:"frequency"`
	WValue    float64      `yaml:"w_value"`
	WPlane    int          `yaml:"w_plane"`
	Mueller   int          `yaml:"mueller"`
	MosaicX   int          `yaml:"mosaic_x"`
	MosaicY   int          `yaml:"mosaic_y"`
	Role      cfstore.Role `yaml:"role"`
	File      string       `yaml:"file"`
	Shape     [4]int       `yaml:"shape,flow"`
}

func (e Entry) mosaic() cfstore.Offset {
	return cfstore.Offset{X: e.MosaicX, Y: e.MosaicY}
}

// Table is the disk index of a cache directory.
type Table struct {
	Version int `yaml:"version"`
	// NextFile is the next kernel file number to hand out.
	NextFile int     `yaml:"next_file"`
	Entries  []Entry `yaml:"entries"`
}

// NewTable returns an empty index.
func NewTable() *Table {
	return &Table{Version: tableVersion}
}

// ParseTable decodes and validates an index.
func ParseTable(data []byte) (*Table, error) {
	t := NewTable()
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Marshal encodes the index.
func (t *Table) Marshal() ([]byte, error) {
	return yaml.Marshal(t)
}

// Validate checks the version and every row.
func (t *Table) Validate() error {
	if t.Version != tableVersion {
		return fmt.Errorf("unsupported index version %d", t.Version)
	}
	if t.NextFile < 0 {
		return fmt.Errorf("negative next_file %d", t.NextFile)
	}
	for i, e := range t.Entries {
		switch {
		case e.File == "":
			return fmt.Errorf("entry %d: empty file name", i)
		case e.Shape[0] <= 0 || e.Shape[1] <= 0 || e.Shape[2] <= 0 || e.Shape[3] <= 0:
			return fmt.Errorf("entry %d: invalid shape %v", i, e.Shape)
		case e.WPlane < 0:
			return fmt.Errorf("entry %d: negative w-plane %d", i, e.WPlane)
		case e.Mueller < 0 || e.Mueller >= e.Shape[1]:
			return fmt.Errorf("entry %d: Mueller element %d outside %d", i, e.Mueller, e.Shape[1])
		case e.Role != cfstore.RoleCF && e.Role != cfstore.RoleWeight:
			return fmt.Errorf("entry %d: unknown role %d", i, e.Role)
		}
	}
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Entries) }

// Files returns the distinct kernel files referenced, in first-seen order.
func (t *Table) Files() []string {
	var files []string
	seen := make(map[string]bool)
	for _, e := range t.Entries {
		if !seen[e.File] {
			seen[e.File] = true
			files = append(files, e.File)
		}
	}
	return files
}

// PAs returns the distinct slot angles in first-seen order.
func (t *Table) PAs() []float64 {
	var pas []float64
	for _, e := range t.Entries {
		if !slices.Contains(pas, e.PA) {
			pas = append(pas, e.PA)
		}
	}
	return pas
}

// Find returns the most recent row for the given slot angle, frequency,
// role, mosaic offset and absolute w-plane (Mueller element 0).
func (t *Table) Find(pa, freq float64, role cfstore.Role, mosaic cfstore.Offset, plane int) (Entry, bool) {
	for i := len(t.Entries) - 1; i >= 0; i-- {
		e := t.Entries[i]
		if e.PA == pa && e.Frequency == freq && e.Role == role && e.mosaic() == mosaic && e.WPlane == plane && e.Mueller == 0 {
			return e, true
		}
	}
	return Entry{}, false
}

// rowsFor builds one row per (plane, Mueller element) of s stored in file.
func rowsFor(slotPA float64, s *cfstore.Store, file string) []Entry {
	shape := s.Kernel().Shape()
	rows := make([]Entry, 0, shape.NW()*shape.NPol())
	for w := range shape.NW() {
		for m := range shape.NPol() {
			rows = append(rows, Entry{
				PA:        slotPA,
				Frequency: s.Frequency(),
				WValue:    s.WValue(w),
				WPlane:    s.FirstPlane() + w,
				Mueller:   m,
				MosaicX:   s.Mosaic().X,
				MosaicY:   s.Mosaic().Y,
				Role:      s.Role(),
				File:      file,
				Shape:     [4]int(shape),
			})
		}
	}
	return rows
}

func (t *Table) clone() *Table {
	return &Table{
		Version:  t.Version,
		NextFile: t.NextFile,
		Entries:  slices.Clone(t.Entries),
	}
}
