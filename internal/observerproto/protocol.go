package observerproto

// Version is the observer protocol version.
const Version = "0.1"

// Client -> Server. First message on the observer WS connection. Re-sending
// it restarts the stream of the current world with the new settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// RowsPerMsg caps how many grid rows go into one ROWS message.
	RowsPerMsg int `json:"rows_per_msg"`
	// Variants asks for per-zone variant indices in addition to types and roles.
	Variants bool `json:"variants,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Generation      int         `json:"generation"`
	Digest          string      `json:"digest"`
	WorldParams     WorldParams `json:"world_params"`
	ZonePalette     []string    `json:"zone_palette"`
	RolePalette     []string    `json:"role_palette"`
}

type WorldParams struct {
	Length              int     `json:"length"`
	Width               int     `json:"width"`
	Seed                int64   `json:"seed"`
	UniqueChance        float64 `json:"unique_chance"`
	ContinentIterations int     `json:"continent_iterations"`
	ContinentStrength   float64 `json:"continent_strength"`
	GrowthThreshold     float64 `json:"growth_threshold"`
	GrowthIncrement     float64 `json:"growth_increment"`
	GrowthJitter        float64 `json:"growth_jitter"`
}

// Server -> Client. Starts a world stream; sent after SUBSCRIBE and again
// whenever the world is regenerated.
type WorldMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	WorldID         string   `json:"world_id"`
	Generation      int      `json:"generation"`
	Digest          string   `json:"digest"`
	Length          int      `json:"length"`
	Width           int      `json:"width"`
	ZonePalette     []string `json:"zone_palette"`
}

// Server -> Client. A band of consecutive rows.
// Encoding "RLE_U16" means:
// - Decode base64 to (value uvarint, run uvarint) pairs
// - Zones values are zone palette ids (1-based), Roles values index RolePalette
// - Cells are in raster order starting at (Row0, 0); total Rows*Width cells
type RowsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Generation      int    `json:"generation"`
	Row0            int    `json:"row0"`
	Rows            int    `json:"rows"`
	Encoding        string `json:"encoding"`
	Zones           string `json:"zones"`
	Roles           string `json:"roles"`
	Variants        []int  `json:"variants,omitempty"`
}

// Server -> Client. Every row of the generation has been sent.
type DoneMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Generation      int    `json:"generation"`
	Digest          string `json:"digest"`
}
