// Property-based tests for the event recorders.
package service

import (
	"context"
	"errors"
	"testing"

	"pgregory.net/rapid"
)

// TestXPMonotonicityProperty checks that no sequence of events, including
// duplicates and rejected quest transitions, ever lowers a user's total XP,
// and that duplicate events earn exactly zero.
func TestXPMonotonicityProperty(t *testing.T) {
	locationIDs := []string{"loc-1", "loc-2", "loc-3", "loc-4", "loc-5", "loc-fortress"}
	phrases := []string{"gamarjoba", "madloba", "nakhvamdis", "didi madloba"}

	rapid.Check(t, func(t *rapid.T) {
		f := newFixture()
		ctx := context.Background()
		userID := "u1"

		numEvents := rapid.IntRange(1, 40).Draw(t, "numEvents")
		var lastXP int64

		for i := 0; i < numEvents; i++ {
			kind := rapid.IntRange(0, 5).Draw(t, "kind")

			var xpEarned int64
			var duplicate bool
			var err error

			switch kind {
			case 0:
				id := rapid.SampledFrom(locationIDs).Draw(t, "locationID")
				result, visitErr := f.progress.RecordVisit(ctx, userID, id)
				err = visitErr
				if visitErr == nil {
					xpEarned, duplicate = result.XPEarned, result.Duplicate
				}
			case 1:
				phrase := rapid.SampledFrom(phrases).Draw(t, "phrase")
				result, phraseErr := f.progress.LearnPhrase(ctx, userID, phrase)
				err = phraseErr
				if phraseErr == nil {
					xpEarned, duplicate = result.XPEarned, result.Duplicate
				}
			case 2:
				result, photoErr := f.progress.RecordPhoto(ctx, userID)
				err = photoErr
				if photoErr == nil {
					xpEarned, duplicate = result.XPEarned, result.Duplicate
				}
			case 3:
				_, err = f.quests.Start(ctx, userID, "quest-old-town")
			case 4:
				result, advErr := f.quests.Advance(ctx, userID, "quest-old-town")
				err = advErr
				if advErr == nil && result.Event != nil {
					xpEarned = result.Event.XPEarned
				}
			case 5:
				_, err = f.quests.Abandon(ctx, userID, "quest-old-town")
			}

			if err != nil {
				// Only deterministic rejections are acceptable here, and
				// they must not move the XP.
				if !isEngineErr(err) {
					t.Fatalf("unexpected store error from event kind %d: %v", kind, err)
				}
				if got := f.totalXP(userID); got < lastXP {
					t.Fatalf("rejected event lowered XP: %d -> %d", lastXP, got)
				}
				continue
			}

			if duplicate && xpEarned != 0 {
				t.Fatalf("duplicate event earned %d XP", xpEarned)
			}
			if xpEarned < 0 {
				t.Fatalf("event earned negative XP: %d", xpEarned)
			}

			got := f.totalXP(userID)
			if got < lastXP {
				t.Fatalf("total XP decreased: %d -> %d", lastXP, got)
			}
			if got != lastXP+xpEarned {
				t.Fatalf("XP accounting mismatch: had %d, earned %d, now %d", lastXP, xpEarned, got)
			}
			lastXP = got
		}
	})
}

// TestCountersMatchRelationsProperty checks that after any event sequence
// the denormalized counters equal the cardinality of their backing sets.
func TestCountersMatchRelationsProperty(t *testing.T) {
	locationIDs := []string{"loc-1", "loc-2", "loc-3", "loc-4", "loc-5"}
	phrases := []string{"gamarjoba", "madloba", "nakhvamdis"}

	rapid.Check(t, func(t *rapid.T) {
		f := newFixture()
		ctx := context.Background()
		userID := "u1"

		numEvents := rapid.IntRange(1, 30).Draw(t, "numEvents")
		for i := 0; i < numEvents; i++ {
			switch rapid.IntRange(0, 2).Draw(t, "kind") {
			case 0:
				id := rapid.SampledFrom(locationIDs).Draw(t, "locationID")
				if _, err := f.progress.RecordVisit(ctx, userID, id); err != nil {
					t.Fatalf("visit failed: %v", err)
				}
			case 1:
				phrase := rapid.SampledFrom(phrases).Draw(t, "phrase")
				if _, err := f.progress.LearnPhrase(ctx, userID, phrase); err != nil {
					t.Fatalf("phrase failed: %v", err)
				}
			case 2:
				if _, err := f.progress.RecordPhoto(ctx, userID); err != nil {
					t.Fatalf("photo failed: %v", err)
				}
			}
		}

		snapshot, err := f.progress.Snapshot(ctx, userID)
		if err != nil {
			if errors.Is(err, ErrProgressNotFound) {
				t.Fatalf("progress missing after %d events", numEvents)
			}
			t.Fatalf("snapshot failed: %v", err)
		}

		visits, err := f.progress.Visits(ctx, userID)
		if err != nil {
			t.Fatalf("visits failed: %v", err)
		}
		learned, err := f.progress.Phrases(ctx, userID)
		if err != nil {
			t.Fatalf("phrases failed: %v", err)
		}

		if int64(len(visits)) != snapshot.Progress.LocationsVisited {
			t.Fatalf("visit counter %d != %d rows", snapshot.Progress.LocationsVisited, len(visits))
		}
		if int64(len(learned)) != snapshot.Progress.PhrasesLearned {
			t.Fatalf("phrase counter %d != %d rows", snapshot.Progress.PhrasesLearned, len(learned))
		}

		statuses, err := f.progress.Achievements(ctx, userID)
		if err != nil {
			t.Fatalf("achievements failed: %v", err)
		}
		earned := 0
		for _, s := range statuses {
			if s.Earned {
				earned++
			}
		}
		if int64(earned) != snapshot.Progress.AchievementsEarned {
			t.Fatalf("achievement counter %d != %d earned", snapshot.Progress.AchievementsEarned, earned)
		}
	})
}
