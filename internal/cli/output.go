package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/disiqueira/gotree/v3"
	"gopkg.in/yaml.v3"

	"github.com/blackdropbox/blackdropbox/internal/config"
	"github.com/blackdropbox/blackdropbox/internal/models"
	"github.com/blackdropbox/blackdropbox/internal/services"
	bdstrings "github.com/blackdropbox/blackdropbox/internal/util/strings"
)

// render writes v as json or yaml, or calls table for the table format.
func render(w io.Writer, format string, v interface{}, table func(tw *tabwriter.Writer)) error {
	switch format {
	case config.OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case config.OutputTable, "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// fileRow is the serialized form of a catalog entry.
type fileRow struct {
	Key          string          `json:"key" yaml:"key"`
	Type         models.FileType `json:"type" yaml:"type"`
	Size         int64           `json:"size" yaml:"size"`
	LastModified string          `json:"lastModified" yaml:"lastModified"`
}

func fileRows(files []models.FileEntry) []fileRow {
	rows := make([]fileRow, 0, len(files))
	for _, f := range files {
		row := fileRow{Key: f.Key, Type: f.Type, Size: f.Size}
		if !f.LastModified.IsZero() {
			row.LastModified = f.LastModified.UTC().Format("2006-01-02T15:04:05Z")
		}
		rows = append(rows, row)
	}
	return rows
}

func renderFiles(w io.Writer, format string, files []models.FileEntry) error {
	return render(w, format, fileRows(files), func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "NAME\tTYPE\tSIZE\tLAST MODIFIED")
		for _, f := range files {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Name(), f.Type, bdstrings.FormatFileSize(f.Size), bdstrings.FormatDate(f.LastModified))
		}
		fmt.Fprintf(tw, "\n%d %s\n", len(files), bdstrings.Pluralize("file", int64(len(files))))
	})
}

// renderFileTree groups files by type.
func renderFileTree(w io.Writer, files []models.FileEntry) {
	root := gotree.New(fmt.Sprintf("%d %s", len(files), bdstrings.Pluralize("file", int64(len(files)))))
	groups := make(map[models.FileType][]models.FileEntry)
	for _, f := range files {
		groups[f.Type] = append(groups[f.Type], f)
	}
	for _, t := range models.AllFileTypes {
		entries := groups[t]
		if len(entries) == 0 {
			continue
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
		node := root.Add(fmt.Sprintf("%s (%d)", t, len(entries)))
		for _, f := range entries {
			node.Add(fmt.Sprintf("%s  %s", f.Name(), bdstrings.FormatFileSize(f.Size)))
		}
	}
	fmt.Fprint(w, root.Print())
}

// versionRow is the serialized form of a version entry.
type versionRow struct {
	Number       int    `json:"number" yaml:"number"`
	VersionID    string `json:"versionId" yaml:"versionId"`
	LastModified string `json:"lastModified" yaml:"lastModified"`
	Size         int64  `json:"size" yaml:"size"`
	IsLatest     bool   `json:"isLatest" yaml:"isLatest"`
}

type versionsOutput struct {
	Key              string       `json:"key" yaml:"key"`
	Fallback         bool         `json:"fallback" yaml:"fallback"`
	DownloadDisabled bool         `json:"downloadDisabled" yaml:"downloadDisabled"`
	Versions         []versionRow `json:"versions" yaml:"versions"`
}

func renderVersions(w io.Writer, format string, history models.VersionHistory, canDownload bool, tree bool) error {
	out := versionsOutput{
		Key:              history.Key,
		Fallback:         history.Fallback,
		DownloadDisabled: !canDownload,
		Versions:         make([]versionRow, 0, len(history.Versions)),
	}
	for i, v := range history.Versions {
		out.Versions = append(out.Versions, versionRow{
			Number:       services.VersionNumber(len(history.Versions), i),
			VersionID:    v.VersionID,
			LastModified: bdstrings.FormatDate(v.LastModified),
			Size:         v.Size,
			IsLatest:     v.IsLatest,
		})
	}

	if tree && (format == "" || format == config.OutputTable) {
		root := gotree.New(history.Key)
		for _, v := range out.Versions {
			label := fmt.Sprintf("v%d  %s  %s  %s", v.Number, services.ShortVersionID(v.VersionID), v.LastModified, bdstrings.FormatFileSize(v.Size))
			if v.IsLatest {
				label += "  (latest)"
			}
			root.Add(label)
		}
		fmt.Fprint(w, root.Print())
		if !canDownload {
			fmt.Fprintln(w, "Version download: disabled (no version API endpoint configured)")
		}
		return nil
	}

	return render(w, format, out, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "#\tVERSION\tLAST MODIFIED\tSIZE\t")
		for _, v := range out.Versions {
			latest := ""
			if v.IsLatest {
				latest = "latest"
			}
			fmt.Fprintf(tw, "v%d\t%s\t%s\t%s\t%s\n", v.Number, services.ShortVersionID(v.VersionID), v.LastModified, bdstrings.FormatFileSize(v.Size), latest)
		}
		if history.Fallback {
			fmt.Fprintln(tw, "\nVersion history unavailable, showing the current version only.")
		}
		if !canDownload {
			fmt.Fprintln(tw, "Version download: disabled (no version API endpoint configured)")
		}
	})
}

func renderStats(w io.Writer, format string, stats models.Stats) error {
	return render(w, format, stats, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Total files:\t%d\n", stats.TotalFiles)
		fmt.Fprintf(tw, "Total size:\t%s\n", stats.TotalSize)
		fmt.Fprintf(tw, "Uploads today:\t%d\n", stats.UploadsToday)
		fmt.Fprintf(tw, "Versions:\t%d\n", stats.Versions)
	})
}
