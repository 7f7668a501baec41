package uibridge

import "strconv"

// Mode selects the blit subcommand a transfer runs under.
type Mode int

const (
	ModeCopy Mode = iota
	ModeMirror
	ModeMove
)

func (m Mode) String() string {
	switch m {
	case ModeMirror:
		return "mirror"
	case ModeMove:
		return "move"
	default:
		return "copy"
	}
}

// Options is the validated options struct the UI collaborator hands the
// bridge (spec §1 contract item (i)). Field names mirror the reference
// UI's OptionsState so BuildArgs stays a direct translation of it.
type Options struct {
	Verbose            bool
	Progress           bool
	IncludeEmpty       bool
	Update             bool
	Checksum           bool
	NoVerify           bool
	NoRestart          bool
	LudicrousSpeed     bool
	NeverTellMeTheOdds bool
	DryRun             bool

	Threads    int
	NetWorkers int
	NetChunkMB int

	ExcludeFiles []string
	ExcludeDirs  []string

	PreserveSymlinks bool // --sl
	ExcludeJunctions bool // --xj

	LogFile string
}

// BuildArgs renders Options into a blit CLI argv, mode first, src/dest
// last (spec §6, ported from the reference UI's build_blit_args).
func BuildArgs(mode Mode, o Options, src, dest string) []string {
	var args []string
	args = append(args, mode.String())

	if o.Verbose {
		args = append(args, "-v")
	}
	implyProgress := !o.LudicrousSpeed && !o.NeverTellMeTheOdds
	if o.Progress || implyProgress {
		args = append(args, "-p")
	}

	if o.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(o.Threads))
	}
	if o.NetWorkers > 0 {
		args = append(args, "--net-workers", strconv.Itoa(o.NetWorkers))
	}
	if o.NetChunkMB > 0 {
		args = append(args, "--net-chunk-mb", strconv.Itoa(o.NetChunkMB))
	}

	if o.IncludeEmpty {
		args = append(args, "--empty-dirs")
	} else {
		args = append(args, "--no-empty-dirs")
	}
	if o.Update {
		args = append(args, "--update")
	}
	if o.DryRun {
		args = append(args, "--list-only")
	}

	for _, xf := range o.ExcludeFiles {
		args = append(args, "--xf", xf)
	}
	for _, xd := range o.ExcludeDirs {
		args = append(args, "--xd", xd)
	}

	if o.Checksum {
		args = append(args, "--checksum")
	}
	if o.NoVerify {
		args = append(args, "--no-verify")
	}
	if o.NoRestart {
		args = append(args, "--no-restart")
	}
	if o.LogFile != "" {
		args = append(args, "--log-file", o.LogFile)
	}

	if o.PreserveSymlinks {
		args = append(args, "--sl")
	}
	if o.ExcludeJunctions {
		args = append(args, "--xj")
	}

	if o.LudicrousSpeed {
		args = append(args, "--ludicrous-speed")
	}
	if o.NeverTellMeTheOdds {
		args = append(args, "--never-tell-me-the-odds")
	}

	args = append(args, src, dest)
	return args
}
