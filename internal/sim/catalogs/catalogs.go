package catalogs

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"zonegrid.ai/internal/sim/world"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Library kinds, also used as file names under <configs>/libraries.
const (
	Mandatory = "mandatory"
	Filler    = "filler"
	Unique    = "unique"
)

type Catalogs struct {
	Zones ZoneCatalog

	Mandatory Library
	Filler    Library
	Unique    Library
}

type ZoneCatalog struct {
	Defs   []ZoneDef
	Index  map[string]world.ZoneID
	Digest string
}

type ZoneDef struct {
	ID          string  `json:"id"`
	Priority    float64 `json:"priority"`
	Description string  `json:"description,omitempty"`
}

// Library maps a zone id to its ordered content variants. Variant indices
// handed out by the generator index into these slices.
type Library struct {
	Kind   string
	ByZone map[string][]VariantDef
	Digest string
}

type VariantDef struct {
	Prefab string   `json:"prefab"`
	Tags   []string `json:"tags,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	zoneSchema, err := compileSchema("zones.schema.json")
	if err != nil {
		return nil, err
	}
	libSchema, err := compileSchema("library.schema.json")
	if err != nil {
		return nil, err
	}

	var c Catalogs
	if err := loadZones(filepath.Join(configDir, "zones.json"), zoneSchema, &c.Zones); err != nil {
		return nil, err
	}
	libs := []struct {
		kind string
		out  *Library
	}{
		{Mandatory, &c.Mandatory},
		{Filler, &c.Filler},
		{Unique, &c.Unique},
	}
	for _, l := range libs {
		path := filepath.Join(configDir, "libraries", l.kind+".json")
		if err := loadLibrary(path, l.kind, libSchema, c.Zones.Index, l.out); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, err
	}
	comp := jsonschema.NewCompiler()
	if err := comp.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	s, err := comp.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}

func validateRaw(s *jsonschema.Schema, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadZones(path string, schema *jsonschema.Schema, out *ZoneCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := validateRaw(schema, raw); err != nil {
		return fmt.Errorf("zones.json: %w", err)
	}
	out.Digest = sha256Hex(raw)

	var defs []ZoneDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("zones.json: %w", err)
	}
	if len(defs) == 0 {
		return fmt.Errorf("zones.json: %w", world.ErrNoZoneTypes)
	}
	// Palette id 0 is reserved for unassigned cells.
	if len(defs) >= 1<<16 {
		return fmt.Errorf("zones.json: %d zone types exceeds palette", len(defs))
	}
	out.Defs = defs
	out.Index = make(map[string]world.ZoneID, len(defs))
	for i, d := range defs {
		if _, dup := out.Index[d.ID]; dup {
			return fmt.Errorf("zones.json: duplicate id %s", d.ID)
		}
		out.Index[d.ID] = world.ZoneID(i + 1)
	}
	return nil
}

func loadLibrary(path, kind string, schema *jsonschema.Schema, zones map[string]world.ZoneID, out *Library) error {
	out.Kind = kind
	out.ByZone = map[string][]VariantDef{}

	raw, err := os.ReadFile(path)
	if err != nil {
		// Every library is optional.
		if os.IsNotExist(err) {
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}
	name := filepath.Base(path)
	if err := validateRaw(schema, raw); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	out.Digest = sha256Hex(raw)
	if err := json.Unmarshal(raw, &out.ByZone); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	for zone := range out.ByZone {
		if _, ok := zones[zone]; !ok {
			return fmt.Errorf("%s: unknown zone %s", name, zone)
		}
	}
	return nil
}

// ZoneTypes returns the catalog in file order, which is also seeding order.
func (c *Catalogs) ZoneTypes() []world.ZoneType {
	out := make([]world.ZoneType, 0, len(c.Zones.Defs))
	for i, d := range c.Zones.Defs {
		out = append(out, world.ZoneType{ID: world.ZoneID(i + 1), Name: d.ID, Priority: d.Priority})
	}
	return out
}

// Counts reduces a library to the variant counts the generator needs.
func (c *Catalogs) Counts(l Library) world.Library {
	out := make(world.Library, len(l.ByZone))
	for zone, vs := range l.ByZone {
		if len(vs) == 0 {
			continue
		}
		out[c.Zones.Index[zone]] = len(vs)
	}
	return out
}

// Variant resolves a published zone back to its content descriptor.
func (c *Catalogs) Variant(z world.Zone) (VariantDef, bool) {
	var l *Library
	switch z.Role {
	case world.RoleMandatory:
		l = &c.Mandatory
	case world.RoleUnique:
		l = &c.Unique
	case world.RoleFiller:
		l = &c.Filler
	default:
		return VariantDef{}, false
	}
	vs := l.ByZone[z.ZoneType]
	if z.Variant < 0 || z.Variant >= len(vs) {
		return VariantDef{}, false
	}
	return vs[z.Variant], true
}

// Digest combines every catalog digest in a fixed order.
func (c *Catalogs) Digest() string {
	parts := []string{c.Zones.Digest, c.Mandatory.Digest, c.Filler.Digest, c.Unique.Digest}
	b, _ := json.Marshal(parts)
	return sha256Hex(b)
}

// ZoneNames returns zone ids sorted alphabetically.
func (c *Catalogs) ZoneNames() []string {
	out := make([]string, 0, len(c.Zones.Defs))
	for _, d := range c.Zones.Defs {
		out = append(out, d.ID)
	}
	sort.Strings(out)
	return out
}
