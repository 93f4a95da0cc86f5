// Package idgen generates opaque identifiers for jobs and stored uploads.
package idgen

import (
	"crypto/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 produces RFC 9562 v7 UUIDs: millisecond timestamp plus random bits.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// NanoID produces lowercase base-36 IDs of the given length.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// Prefixed prepends prefix to every ID produced by gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Timestamped produces "<unix millis>-<suffix>" IDs. The numeric prefix keeps
// generated filenames sortable by upload time.
func Timestamped(gen Generator) Generator {
	return func() string {
		return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + gen()
	}
}

// JobID is the generator used for import/export job records.
var JobID Generator = Prefixed("job_", UUIDv7())

// UploadName is the generator used for stored upload filenames.
var UploadName Generator = Timestamped(NanoID(8))
