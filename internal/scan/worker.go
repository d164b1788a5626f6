package scan

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/solemnwarning/chmweb/internal/contents"
	"github.com/solemnwarning/chmweb/internal/models"
	"github.com/solemnwarning/chmweb/internal/workerpool"
)

// Job kinds dispatched to workers.
const (
	JobPage = "page"
	JobHHC  = "hhc"
)

// Job is one unit of work shipped to a worker: which file to read and how
// to interpret it.
type Job struct {
	Kind    string `json:"kind"`
	File    string `json:"file"`
	Archive string `json:"archive,omitempty"`
	RootRel string `json:"root_rel,omitempty"`
}

// Result is a worker's reply to one Job.
type Result struct {
	Page    *models.PageRecord     `json:"page,omitempty"`
	Outline []contents.OutlineNode `json:"outline,omitempty"`
}

// ServeWorker runs the worker side of the pool: reading pages and HHC
// files off disk and returning their parsed forms. Called from main when
// the binary is re-executed with the hidden worker argument.
func ServeWorker() {
	workerpool.Serve(func(args json.RawMessage, warn func(string)) (interface{}, error) {
		var job Job
		if err := json.Unmarshal(args, &job); err != nil {
			return nil, fmt.Errorf("malformed job: %w", err)
		}

		data, err := os.ReadFile(job.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", job.File, err)
		}

		switch job.Kind {
		case JobPage:
			page, err := ScanPage(data, job.Archive, job.RootRel)
			if err != nil {
				return nil, fmt.Errorf("failed to scan %s: %w", job.File, err)
			}
			return Result{Page: page}, nil

		case JobHHC:
			outline, err := contents.ParseHHC(data)
			if err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", job.File, err)
			}
			return Result{Outline: outline}, nil

		default:
			return nil, fmt.Errorf("unknown job kind %q", job.Kind)
		}
	})
}
