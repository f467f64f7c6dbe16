package export

// ResolvedClip is one EDL event: a media clip with source in/out points
// and its record position on the demo timeline, all in milliseconds.
type ResolvedClip struct {
	ClipName    string
	MediaPath   string
	SrcInMs     int64
	SrcOutMs    int64
	RecordInMs  int64
	RecordOutMs int64
}
