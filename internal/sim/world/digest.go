package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteString(h hashWriter, tmp *[8]byte, s string) {
	digestWriteU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}

// Digest is a stable hash of everything that defines a world's layout:
// dimensions, seed, palette and every zone. Two worlds with the same digest
// are interchangeable for downstream consumers.
func Digest(w *World) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, uint64(w.Length))
	digestWriteU64(h, &tmp, uint64(w.Width))
	digestWriteU64(h, &tmp, uint64(w.Seed))
	digestWriteU64(h, &tmp, uint64(len(w.Palette)))
	for _, name := range w.Palette {
		digestWriteString(h, &tmp, name)
	}
	for _, z := range w.Zones {
		digestWriteString(h, &tmp, z.ZoneType)
		h.Write([]byte{byte(z.Role)})
		digestWriteU64(h, &tmp, uint64(int64(z.Variant)))
	}
	return hex.EncodeToString(h.Sum(nil))
}
