package media

// MetadataEntry is one timed metadata frame (ID3, EMSG, ICY).
type MetadataEntry struct {
	Scheme string
	Key    string
	Value  string
}

// Metadata is a batch of entries decoded at the same presentation time.
type Metadata struct {
	PresentationTimeMs int64
	Entries            []MetadataEntry
}

// Window is one entry of an engine timeline.
type Window struct {
	ID         string
	DurationMs int64
	IsSeekable bool
	IsDynamic  bool
}

// WindowInfo is a snapshot of the timeline around the current window.
// Indexes are -1 when there is no previous or next window.
type WindowInfo struct {
	PreviousIndex int
	CurrentIndex  int
	NextIndex     int
	Current       Window
}
