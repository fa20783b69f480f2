package dicomtags

import (
	"fmt"
	"time"

	"github.com/otcheredev/oxidicom-go/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// requiredTagNames names the tags whose absence makes an instance
// unregisterable, in the order spec.md lists them.
var requiredTagNames = []string{"StudyInstanceUID", "SeriesInstanceUID", "SOPInstanceUID", "PatientID", "StudyDate"}

func str(ds *dicom.Dataset, t tag.Tag) string {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return ""
	}
	v, ok := elem.Value.GetValue().([]string)
	if !ok || len(v) == 0 {
		return ""
	}
	return v[0]
}

func intVal(ds *dicom.Dataset, t tag.Tag) (int, bool) {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return 0, false
	}
	switch v := elem.Value.GetValue().(type) {
	case []int:
		if len(v) == 0 {
			return 0, false
		}
		return v[0], true
	case []string:
		if len(v) == 0 {
			return 0, false
		}
		var n int
		if _, err := fmt.Sscanf(v[0], "%d", &n); err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// parseStudyDate accepts the DICOM DA format "YYYYMMDD"; as a fallback it
// also accepts "YYYY-MM-DD", logging a warning when that fallback is what
// succeeded.
func parseStudyDate(raw string) (time.Time, error) {
	if t, err := time.Parse("20060102", raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse study date %q: %w", raw, err)
	}
	log.Warn().Str("study_date", raw).Msg("study date used non-standard YYYY-MM-DD fallback format")
	return t, nil
}

// ExtractSeriesTags normalizes the tags of a decoded instance dataset
// into a domain.DicomInfo, deriving its storage path along the way. It
// returns a *domain.RequiredTagError if any of the five mandatory tags is
// missing or unparseable; that error carries enough of the present tags
// for the caller to attempt a best-effort SeriesKey reconstruction.
func ExtractSeriesTags(ds *dicom.Dataset, pacsName string) (domain.DicomInfo, error) {
	info := domain.DicomInfo{PacsName: pacsName}

	info.PatientID = str(ds, tag.PatientID)
	info.StudyInstanceUID = str(ds, tag.StudyInstanceUID)
	info.SeriesInstanceUID = str(ds, tag.SeriesInstanceUID)
	sopInstanceUID := str(ds, tag.SOPInstanceUID)
	rawStudyDate := str(ds, tag.StudyDate)

	var missing []string
	if info.StudyInstanceUID == "" {
		missing = append(missing, "StudyInstanceUID")
	}
	if info.SeriesInstanceUID == "" {
		missing = append(missing, "SeriesInstanceUID")
	}
	if sopInstanceUID == "" {
		missing = append(missing, "SOPInstanceUID")
	}
	if info.PatientID == "" {
		missing = append(missing, "PatientID")
	}
	var studyDate time.Time
	if rawStudyDate == "" {
		missing = append(missing, "StudyDate")
	} else {
		var err error
		studyDate, err = parseStudyDate(rawStudyDate)
		if err != nil {
			missing = append(missing, "StudyDate")
		}
	}
	if len(missing) > 0 {
		return info, &domain.RequiredTagError{Missing: missing}
	}
	info.StudyDate = studyDate

	info.PatientName = str(ds, tag.PatientName)
	info.PatientBirthDate = str(ds, tag.PatientBirthDate)
	info.PatientSex = str(ds, tag.PatientSex)
	info.AccessionNumber = str(ds, tag.AccessionNumber)
	info.Modality = str(ds, tag.Modality)
	info.ProtocolName = str(ds, tag.ProtocolName)
	info.StudyDescription = str(ds, tag.StudyDescription)
	info.SeriesDescription = str(ds, tag.SeriesDescription)

	if rawAge := str(ds, tag.PatientAge); rawAge != "" {
		days, err := parsePatientAge(rawAge)
		if err != nil {
			info.BadTags = append(info.BadTags, domain.BadTag{Tag: "PatientAge", Value: rawAge, Err: err})
		} else {
			info.PatientAge = &days
		}
	}

	seriesNumber, seriesNumberPresent := intVal(ds, tag.SeriesNumber)
	instanceNumber, instanceNumberPresent := intVal(ds, tag.InstanceNumber)

	info.Path = BuildPath(
		pacsName,
		info.PatientID, info.PatientName, info.PatientBirthDate,
		info.StudyDescription, info.AccessionNumber, rawStudyDate,
		OptionalNumber{Value: seriesNumber, Present: seriesNumberPresent}, info.SeriesDescription, info.SeriesInstanceUID,
		OptionalNumber{Value: instanceNumber, Present: instanceNumberPresent}, sopInstanceUID,
	)

	return info, nil
}

// RequiredTagNames exposes the mandatory-tag list for diagnostics.
func RequiredTagNames() []string { return append([]string(nil), requiredTagNames...) }
