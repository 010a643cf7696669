package waltests

import "path/filepath"
import "testing"
import "time"

import "github.com/sirgallo/grsfs/pkg/operation"
import "github.com/sirgallo/grsfs/pkg/stats"
import "github.com/sirgallo/grsfs/pkg/wal"


func setupMockWAL(t *testing.T, maxEntries int) *wal.WAL {
	journal, walErr := wal.NewWAL(filepath.Join(t.TempDir(), "journal.db"), maxEntries)
	if walErr != nil { t.Fatalf("unable to open wal: %s", walErr.Error()) }

	t.Cleanup(func() { journal.Close() })
	return journal
}

func appendSteps(t *testing.T, journal *wal.WAL, from uint64, to uint64) {
	for step := from; step <= to; step++ {
		env := &operation.Envelope{ Op: operation.Write, Path: "/f", Offset: int64(step), Data: operation.Binary{ byte(step) } }
		env.SetStep(step)

		appendErr := journal.Append(env)
		if appendErr != nil { t.Fatalf("unable to append step %d: %s", step, appendErr.Error()) }
	}
}

func TestJournalRange(t *testing.T) {
	journal := setupMockWAL(t, 0)
	appendSteps(t, journal, 1, 10)

	entries, rangeErr := journal.GetRange(4, 6)
	if rangeErr != nil { t.Fatalf("unable to read range: %s", rangeErr.Error()) }

	t.Logf("actual entries: %d, expected entries: %d\n", len(entries), 3)
	if len(entries) != 3 { t.Fatalf("actual entries not equal to expected: actual(%d), expected(%d)\n", len(entries), 3) }

	for idx, env := range entries {
		step, _ := env.Step()
		if step != uint64(4 + idx) { t.Errorf("actual step not equal to expected: actual(%d), expected(%d)\n", step, 4 + idx) }
		if env.Data[0] != byte(step) { t.Errorf("payload for step %d did not survive the journal", step) }
	}

	latest, latestErr := journal.GetLatest()
	if latestErr != nil { t.Fatalf("unable to read latest: %s", latestErr.Error()) }

	latestStep, _ := latest.Step()
	if latestStep != 10 { t.Errorf("actual latest not equal to expected: actual(%d), expected(%d)\n", latestStep, 10) }

	truncErr := journal.TruncateAfter(7)
	if truncErr != nil { t.Fatalf("unable to truncate: %s", truncErr.Error()) }

	total, _ := journal.GetTotal()
	if total != 7 { t.Errorf("actual total not equal to expected: actual(%d), expected(%d)\n", total, 7) }
}

func TestJournalRetention(t *testing.T) {
	journal := setupMockWAL(t, 3)
	appendSteps(t, journal, 1, 8)

	earliest, earliestErr := journal.GetEarliest()
	if earliestErr != nil { t.Fatalf("unable to read earliest: %s", earliestErr.Error()) }

	earliestStep, _ := earliest.Step()
	t.Logf("actual earliest: %d, expected earliest: %d\n", earliestStep, 6)
	if earliestStep != 6 { t.Errorf("actual earliest not equal to expected: actual(%d), expected(%d)\n", earliestStep, 6) }

	missing, readErr := journal.Read(2)
	if readErr != nil || missing != nil { t.Errorf("expected trimmed step to be gone") }

	appendErr := journal.Append(&operation.Envelope{ Op: operation.Write })
	if appendErr != wal.ErrMissingStep { t.Errorf("expected an envelope without a step to be refused, got: %v", appendErr) }
}

func TestStatsBucket(t *testing.T) {
	journal := setupMockWAL(t, 0)

	for idx := 0; idx < wal.MaxStats + 3; idx++ {
		statObj := stats.Stats{
			AvailableDiskSpaceInBytes: int64(idx),
			Timestamp: time.Unix(int64(1700000000 + idx), 0).UTC().Format(time.RFC3339Nano),
		}

		setErr := journal.SetStat(statObj)
		if setErr != nil { t.Fatalf("unable to set stat: %s", setErr.Error()) }
	}

	deleteErr := journal.DeleteStats()
	if deleteErr != nil { t.Fatalf("unable to delete stats: %s", deleteErr.Error()) }

	statsArr, getErr := journal.GetStats()
	if getErr != nil { t.Fatalf("unable to get stats: %s", getErr.Error()) }

	t.Logf("actual stats: %d, expected stats: %d\n", len(statsArr), wal.MaxStats)
	if len(statsArr) != wal.MaxStats { t.Fatalf("actual stats not equal to expected: actual(%d), expected(%d)\n", len(statsArr), wal.MaxStats) }
	if statsArr[0].AvailableDiskSpaceInBytes != 3 { t.Errorf("expected the oldest entries to be removed first") }
}
