package stats


type Stats struct {
	AvailableDiskSpaceInBytes int64
	TotalDiskSpaceInBytes int64
	UsedDiskSpaceInBytes int64
	Timestamp string
}

const NAME = "Stats"
const UnknownScore = int64(-1)
const bytesPerMiB = 1 << 20
