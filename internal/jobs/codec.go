package jobs

import (
	"bytes"
	"encoding/json"
)

type wireStatistics struct {
	ToBeChecked int `json:"to_be_checked"`
	Checking    int `json:"checking"`
	OK          int `json:"ok"`
	Bad         int `json:"bad"`
	Error       int `json:"error"`
}

type wireEntry struct {
	Path         string  `json:"path"`
	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

type wireJobFile struct {
	RootDirectory *string         `json:"root_directory"`
	TotalFiles    *int            `json:"total_files"`
	Statistics    *wireStatistics `json:"statistics"`
	Jobs          *[]wireEntry    `json:"jobs"`
}

// decodeReport describes what Decode had to repair.
type decodeReport struct {
	recovered int
	drifted   bool
}

// Encode serializes a job file. Entries held in Checking are written as
// ToBeChecked so that the persisted form never contains the transient status.
func Encode(jf JobFile) ([]byte, error) {
	entries := make([]wireEntry, len(jf.Entries))
	persisted := make([]Entry, len(jf.Entries))
	for i, entry := range jf.Entries {
		status := entry.Status
		if status == StatusChecking {
			status = StatusToBeChecked
		}
		persisted[i] = Entry{Path: entry.Path, Status: status}
		entries[i] = wireEntry{Path: entry.Path, Status: string(status)}
		if status.IsFailure() && entry.ErrorMessage != "" {
			msg := entry.ErrorMessage
			entries[i].ErrorMessage = &msg
		}
	}
	stats := ComputeStatistics(persisted)
	root := jf.RootDirectory
	total := len(entries)
	wire := wireJobFile{
		RootDirectory: &root,
		TotalFiles:    &total,
		Statistics: &wireStatistics{
			ToBeChecked: stats.ToBeChecked,
			Checking:    stats.Checking,
			OK:          stats.OK,
			Bad:         stats.Bad,
			Error:       stats.Error,
		},
		Jobs: &entries,
	}
	data, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Decode parses a job file, rejecting malformed or structurally inconsistent
// input, and normalises Checking entries back to ToBeChecked.
func Decode(data []byte) (JobFile, error) {
	jf, _, err := decode(data)
	return jf, err
}

func decode(data []byte) (JobFile, decodeReport, error) {
	var report decodeReport
	if len(bytes.TrimSpace(data)) == 0 {
		return JobFile{}, report, formatErrorf("empty document")
	}

	var wire wireJobFile
	if err := json.Unmarshal(data, &wire); err != nil {
		return JobFile{}, report, &FormatError{Reason: "parse JSON", Err: err}
	}
	if wire.RootDirectory == nil {
		return JobFile{}, report, formatErrorf("missing root_directory")
	}
	if wire.Jobs == nil {
		return JobFile{}, report, formatErrorf("missing jobs")
	}
	if wire.TotalFiles == nil {
		return JobFile{}, report, formatErrorf("missing total_files")
	}
	if *wire.TotalFiles != len(*wire.Jobs) {
		return JobFile{}, report, formatErrorf("total_files is %d but %d jobs are listed", *wire.TotalFiles, len(*wire.Jobs))
	}

	jf := JobFile{
		RootDirectory: *wire.RootDirectory,
		Entries:       make([]Entry, 0, len(*wire.Jobs)),
	}
	for i, raw := range *wire.Jobs {
		status, ok := ParseStatus(raw.Status)
		if !ok {
			return JobFile{}, report, formatErrorf("jobs[%d]: unknown status %q", i, raw.Status)
		}
		entry := Entry{Path: raw.Path, Status: status}
		if raw.ErrorMessage != nil {
			entry.ErrorMessage = *raw.ErrorMessage
		}
		jf.Entries = append(jf.Entries, entry)
	}
	if err := jf.validate(); err != nil {
		return JobFile{}, report, err
	}

	if wire.Statistics != nil {
		s := *wire.Statistics
		if s.ToBeChecked < 0 || s.Checking < 0 || s.OK < 0 || s.Bad < 0 || s.Error < 0 {
			return JobFile{}, report, formatErrorf("statistics contain negative counts")
		}
	}

	report.recovered = jf.normalize()
	if wire.Statistics != nil {
		s := *wire.Statistics
		persisted := Statistics(s)
		report.drifted = persisted != jf.Statistics()
	}
	return jf, report, nil
}
