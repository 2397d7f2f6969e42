// anidump 解码单个动画库文件并以 YAML 输出概要或完整帧数据
package main

import (
	"fmt"
	"io"
	"os"

	"ani-viewer/internal/animate"
	"ani-viewer/internal/config"
	"ani-viewer/internal/loader"
	"ani-viewer/internal/logging"
	"ani-viewer/internal/models"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if animate.IsFormatError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type fileDump struct {
	File        string         `yaml:"file"`
	Digest      string         `yaml:"digest"`
	Size        int64          `yaml:"size"`
	Compression string         `yaml:"compression"`
	Summary     models.Summary `yaml:"summary"`
	Atlases     []atlasDump    `yaml:"atlases,omitempty"`
	Clips       []clipDump     `yaml:"clips,omitempty"`
}

type atlasDump struct {
	Index   int `yaml:"index"`
	Format  int `yaml:"format"`
	Width   int `yaml:"width"`
	Height  int `yaml:"height"`
	Texture int `yaml:"texture"`
}

type clipDump struct {
	ID     int         `yaml:"id"`
	Name   string      `yaml:"name,omitempty"`
	Uids   []int       `yaml:"uids,flow"`
	States []stateDump `yaml:"states"`
}

type stateDump struct {
	Name          string      `yaml:"name"`
	StartTime     int         `yaml:"startTime"`
	TotalTime     int         `yaml:"totalTime"`
	LoopStartTime int         `yaml:"loopStartTime"`
	Depths        []depthDump `yaml:"depths"`
}

type depthDump struct {
	Depth  int         `yaml:"depth"`
	Frames []frameDump `yaml:"frames"`
}

type frameDump struct {
	Time   int        `yaml:"time"`
	UID    int        `yaml:"uid"`
	Name   *string    `yaml:"name,omitempty"`
	Alpha  float64    `yaml:"alpha"`
	Matrix [6]float64 `yaml:"matrix,flow"`
}

func run(args []string, stdout, stderr io.Writer) error {
	flagSet := pflag.NewFlagSet("anidump", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	frames := flagSet.BoolP("frames", "f", false, "dump every frame of every movie clip state")
	maxBlob := flagSet.Int("max-blob-size", config.DefaultMaxBlobSize, "largest atlas blob accepted, in bytes")
	debug := flagSet.Bool("debug", false, "enable debug logging")
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "Usage: anidump [flags] <file.ani[.zst|.lz4]>\n")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return fmt.Errorf("expected exactly one file, got %d", flagSet.NArg())
	}

	logging.SetOutput(stderr, logging.FormatText)
	logging.SetDebugMode(*debug)

	res, err := loader.Load(flagSet.Arg(0), animate.Options{MaxBlobSize: *maxBlob})
	if err != nil {
		return err
	}
	logging.Component("anidump").Debug("decoded",
		"symbols", res.Library.Len(), "digest", res.Digest.String(), "elapsed", res.Elapsed)

	dump := fileDump{
		File:        res.Path,
		Digest:      res.Digest.String(),
		Size:        res.Size,
		Compression: res.Compression.String(),
		Summary:     res.Library.Summarize(),
	}
	if *frames {
		dump.Atlases, dump.Clips = dumpLibrary(res.Library)
	}

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(dump); err != nil {
		return err
	}
	return enc.Close()
}

func dumpLibrary(lib *models.Library) ([]atlasDump, []clipDump) {
	var atlases []atlasDump
	for _, a := range lib.Atlases {
		atlases = append(atlases, atlasDump{
			Index: a.Index, Format: a.Format, Width: a.Width, Height: a.Height, Texture: int(a.Texture),
		})
	}

	var clips []clipDump
	for _, s := range lib.Symbols {
		mc, ok := s.(*models.MovieClipSymbol)
		if !ok {
			continue
		}
		clip := clipDump{ID: mc.ID, Name: mc.DisplayName(), Uids: make([]int, len(mc.UidInfo))}
		for i, u := range mc.UidInfo {
			clip.Uids[i] = u.CharacterID
		}
		for _, name := range mc.StateNames() {
			entry := mc.States[name]
			st := stateDump{
				Name:          name,
				StartTime:     entry.StartTime,
				TotalTime:     entry.State.TotalTime,
				LoopStartTime: entry.State.LoopStartTime,
			}
			for depth := range entry.State.Timelines {
				d := depthDump{Depth: depth, Frames: []frameDump{}}
				for _, f := range entry.State.Timelines[depth].Frames() {
					m := f.Matrix.Matrix
					d.Frames = append(d.Frames, frameDump{
						Time:   f.Time,
						UID:    f.UID,
						Name:   f.Name,
						Alpha:  f.Alpha,
						Matrix: [6]float64{m.A, m.B, m.C, m.D, m.TX, m.TY},
					})
				}
				st.Depths = append(st.Depths, d)
			}
			clip.States = append(clip.States, st)
		}
		clips = append(clips, clip)
	}
	return atlases, clips
}
