package txid

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

const suffixChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// suffixLen keeps the collision window per millisecond negligible.
const suffixLen = 6

// Generator produces collision-resistant transaction identifiers of the
// form <PREFIX><unix-millis><random alnum suffix>. Uniqueness is not
// checked against the store; the unique constraint on transaction_id is
// the backstop.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator creates a generator seeded from the current time
func NewGenerator() *Generator {
	return &Generator{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
}

// Generate returns a new transaction id with the given channel prefix
func (g *Generator) Generate(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(strconv.FormatInt(g.now().UnixMilli(), 10))
	for i := 0; i < suffixLen; i++ {
		b.WriteByte(suffixChars[g.rng.Intn(len(suffixChars))])
	}
	return b.String()
}
