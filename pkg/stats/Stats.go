package stats

import "time"

import "golang.org/x/sys/unix"

import "github.com/sirgallo/grsfs/pkg/logger"


var Log = clog.NewCustomLog(NAME)


/*
	Calculate Current Stats
		disk usage of the filesystem holding path
*/

func CalculateCurrentStats(path string) (*Stats, error) {
	var stat unix.Statfs_t

	statErr := unix.Statfs(path, &stat) 
	if statErr != nil {
		Log.Error("error getting disk space for", path, ":", statErr.Error())
		return nil, statErr
	}

	blockSize := uint64(stat.Bsize)
	available := int64(uint64(stat.Bavail) * blockSize)
	total := int64(uint64(stat.Blocks) * blockSize)
	used := int64((uint64(stat.Blocks) - uint64(stat.Bfree)) * blockSize)

	return &Stats{
		AvailableDiskSpaceInBytes: available,
		TotalDiskSpaceInBytes: total,
		UsedDiskSpaceInBytes: used,
		Timestamp: time.Now().Format(time.RFC3339Nano),
	}, nil
}

/*
	Score
		the election tie breaker: available MiB, at least 1, or UnknownScore without stats
*/

func Score(statObj *Stats) int64 {
	if statObj == nil || statObj.TotalDiskSpaceInBytes <= 0 { return UnknownScore }

	score := statObj.AvailableDiskSpaceInBytes / bytesPerMiB
	if score < 1 { return 1 }

	return score
}
