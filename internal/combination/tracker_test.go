package combination

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"testing"

	"outfit-studio/internal/analytics"
	"outfit-studio/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type recordingEmitter struct {
	events []analytics.Event
}

func (r *recordingEmitter) EmitAsync(event analytics.Event) {
	r.events = append(r.events, event)
}

func TestIDMatchesHashOfSortedIDs(t *testing.T) {
	sum := sha256.Sum256([]byte("hosen-3|schuhe-7"))
	h := hex.EncodeToString(sum[:])
	want := h[0:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:32]

	if got := ID([]string{"schuhe-7", "hosen-3"}); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if got := ID([]string{"hosen-3", "schuhe-7"}); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestProperty_IDIsOrderIndependent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("any permutation yields the same id", prop.ForAll(
		func(ids []string, seed int64) bool {
			shuffled := append([]string(nil), ids...)
			rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			return ID(ids) == ID(shuffled)
		},
		gen.SliceOf(gen.Identifier()),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestProperty_DistinctMembershipsYieldDistinctIDs(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("adding a new member changes the id", prop.ForAll(
		func(ids []string, extra string) bool {
			for _, id := range ids {
				if id == extra {
					return true
				}
			}
			return ID(ids) != ID(append(ids, extra))
		},
		gen.SliceOf(gen.Identifier()),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func TestRecordEmitsCombination(t *testing.T) {
	emitter := &recordingEmitter{}
	tracker := NewTracker(emitter, zap.NewNop())

	items := []domain.ProductRecord{
		{ID: "schuhe-7", Name: "Sneaker", Price: decimal.RequireFromString("89.90"), Color: "Weiß"},
		{ID: "hosen-3", Name: "Jeans", Price: decimal.RequireFromString("59.99"), Color: "Blau"},
	}
	rec := tracker.Record(context.Background(), items, "/generated/generated_x.png", "sess-1")

	if rec.ID != ID([]string{"hosen-3", "schuhe-7"}) {
		t.Errorf("unexpected id %s", rec.ID)
	}
	if rec.Items[0].ProductID != "schuhe-7" || rec.Items[1].Price != 59.99 {
		t.Errorf("unexpected items %+v", rec.Items)
	}
	if len(emitter.events) != 1 || emitter.events[0].Topic != analytics.TopicCombinations || emitter.events[0].Key != rec.ID {
		t.Fatalf("unexpected events %+v", emitter.events)
	}
}
