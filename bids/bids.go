// Package bids maps subject identifiers onto the files of a BIDS-style
// dataset tree. Raw acquisitions live under the data root; every pipeline
// stage writes its product into a mirrored tree under the derivatives root,
// so that later stages (and the viewer) can find upstream outputs without
// being told about them.
package bids

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/neuroviz/neuroviz"
	"github.com/neuroviz/neuroviz/config"
)

// Fixed derivative names. Changing these breaks resumability of existing
// derivative trees.
const (
	PreprocessedT1Name = "preprocessed_t1.nii.gz"
	BrainName          = "preprocessed_t1_brain.nii.gz"
	AlignedT1Name      = "aligned_t1.nii.gz"
	SurfaceName        = "reconstructed_brain_surface.vtk"
	MappedSurfaceName  = "mapped_fmri_to_surface.vtk"
)

// Layout resolves filenames for one dataset. It is constructed once from the
// settings and never mutated.
type Layout struct {
	RawRoot         string
	DerivRoot       string
	Session         string
	T1Acquisition   string
	FMRITask        string
	UsePreprocessed bool
}

func NewLayout(cfg *config.Config) (*Layout, error) {
	rawRoot, err := cfg.RawRoot()
	if err != nil {
		return nil, err
	}

	derivRoot, err := cfg.DerivRoot()
	if err != nil {
		return nil, err
	}

	return &Layout{
		RawRoot:         rawRoot,
		DerivRoot:       derivRoot,
		Session:         NormalizeSession(cfg.Session),
		T1Acquisition:   cfg.MRI.T1Acquisition,
		FMRITask:        cfg.MRI.FMRITask,
		UsePreprocessed: cfg.UsePreprocessed,
	}, nil
}

// NormalizeSubject accepts identifiers with or without the sub- prefix, so
// that settings may list either "001" or "sub-001".
func NormalizeSubject(id string) string {
	if strings.HasPrefix(id, "sub-") {
		return id
	}

	return "sub-" + id
}

func NormalizeSession(id string) string {
	if strings.HasPrefix(id, "ses-") {
		return id
	}

	return "ses-" + id
}

func (l *Layout) anatDir(root, subject string) string {
	return filepath.Join(root, subject, l.Session, "anat")
}

// T1Path is the raw anatomical acquisition, e.g.
// sub-001/ses-001/anat/sub-001_ses-001_acq-highres_T1w.nii.gz.
func (l *Layout) T1Path(subject string) string {
	subject = NormalizeSubject(subject)
	name := fmt.Sprintf("%s_%s_acq-%s_T1w.nii.gz", subject, l.Session, l.T1Acquisition)

	return filepath.Join(l.anatDir(l.RawRoot, subject), name)
}

// FMRIPath is the raw functional series for the configured task.
func (l *Layout) FMRIPath(subject string) string {
	subject = NormalizeSubject(subject)
	name := fmt.Sprintf("%s_%s_task-%s_bold.nii.gz", subject, l.Session, l.FMRITask)

	return filepath.Join(l.RawRoot, subject, l.Session, "func", name)
}

// EEGPath is the raw EEG recording for the configured task.
func (l *Layout) EEGPath(subject string) string {
	subject = NormalizeSubject(subject)
	name := fmt.Sprintf("%s_%s_task-%s_eeg.edf", subject, l.Session, l.FMRITask)

	return filepath.Join(l.RawRoot, subject, l.Session, "eeg", name)
}

// FilteredEEGPath is the band-passed recording written by the EEG report
// stage into the derivatives tree.
func (l *Layout) FilteredEEGPath(subject string) string {
	subject = NormalizeSubject(subject)
	name := fmt.Sprintf("%s_%s_task-%s_desc-bandpass_eeg.edf", subject, l.Session, l.FMRITask)

	return filepath.Join(l.DerivRoot, subject, l.Session, "eeg", name)
}

// ElectrodesPath is the electrode coordinate table for the subject.
func (l *Layout) ElectrodesPath(subject string) string {
	subject = NormalizeSubject(subject)
	name := fmt.Sprintf("%s_%s_electrodes.tsv", subject, l.Session)

	return filepath.Join(l.RawRoot, subject, l.Session, "eeg", name)
}

// PreprocessedT1Path is the filtered, bias-corrected T1 written by the
// preprocessing stage into the derivatives tree.
func (l *Layout) PreprocessedT1Path(subject string) string {
	subject = NormalizeSubject(subject)

	return filepath.Join(l.anatDir(l.DerivRoot, subject), "preprocessed_anat", PreprocessedT1Name)
}

// BrainPath is the skull-stripped, segmented volume written by the FSL
// preprocessing stage.
func (l *Layout) BrainPath(subject string) string {
	subject = NormalizeSubject(subject)

	return filepath.Join(l.anatDir(l.DerivRoot, subject), "preprocessed_anat", "segment_t1_fsl", BrainName)
}

// AlignedT1Path is the registered volume written by the alignment stage.
func (l *Layout) AlignedT1Path(subject string) string {
	subject = NormalizeSubject(subject)

	return filepath.Join(l.anatDir(l.DerivRoot, subject), "aligned_anat", AlignedT1Name)
}

// ResultsDir holds the reconstructed and mapped surfaces for a subject.
func (l *Layout) ResultsDir(subject string) string {
	subject = NormalizeSubject(subject)

	return filepath.Join(l.DerivRoot, subject, l.Session, "results")
}

// RunLogPath is the shared stage ledger for the whole derivatives tree.
func (l *Layout) RunLogPath() string {
	return filepath.Join(l.DerivRoot, "runlog.db")
}

func (l *Layout) SurfacePath(subject string) string {
	return filepath.Join(l.ResultsDir(subject), SurfaceName)
}

func (l *Layout) MappedSurfacePath(subject string) string {
	return filepath.Join(l.ResultsDir(subject), MappedSurfaceName)
}

// Subjects lists every sub-* directory under the raw root, sorted, with the
// sub- prefix stripped. An empty dataset is not an error.
func (l *Layout) Subjects() ([]string, error) {
	entries, err := os.ReadDir(l.RawRoot)
	if err != nil {
		return nil, neuroviz.DataErrorf("bids: %v", err)
	}

	var subjects []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "sub-") {
			continue
		}
		subjects = append(subjects, strings.TrimPrefix(entry.Name(), "sub-"))
	}
	sort.Strings(subjects)

	return subjects, nil
}

// ResolveT1 returns the anatomical volume the loader should read: the raw
// acquisition, or the preprocessed derivative when use_preprocessed is set.
// The choice depends only on the toggle, never on which files happen to
// exist.
func (l *Layout) ResolveT1(subject string) (string, error) {
	if l.UsePreprocessed {
		return mustExist(l.PreprocessedT1Path(subject))
	}

	return mustExist(l.T1Path(subject))
}

// ResolveFMRI returns the functional series to read. Functional data is
// always read raw; preprocessing only touches the anatomical side.
func (l *Layout) ResolveFMRI(subject string) (string, error) {
	return mustExist(l.FMRIPath(subject))
}

func (l *Layout) ResolveEEG(subject string) (string, error) {
	return mustExist(l.EEGPath(subject))
}

func mustExist(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", neuroviz.DataErrorf("expected file is absent: %s", path)
	}

	return path, nil
}

// EnsureParent creates the directory that will hold path. Stages call this
// before writing a derivative.
func EnsureParent(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return neuroviz.DataErrorf("creating %s: %v", filepath.Dir(path), err)
	}

	return nil
}
