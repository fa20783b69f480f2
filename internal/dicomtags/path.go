package dicomtags

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// hash7 returns the hexadecimal xxhash of uid truncated to 7 characters.
// Its only purpose is directory-name disambiguation, never cryptographic
// integrity - any deterministic hash would satisfy this, and xxhash is
// already in the dependency graph (go-redis pulls it in for client-side
// sharding).
func hash7(uid string) string {
	h := fmt.Sprintf("%016x", xxhash.Sum64String(uid))
	return h[:7]
}

// OptionalNumber carries a DICOM integer tag (SeriesNumber,
// InstanceNumber) that may be absent from the dataset. BuildPath
// substitutes the tag's own name as a literal placeholder when Present is
// false, the same treatment every other optional path component gets.
type OptionalNumber struct {
	Value   int
	Present bool
}

// BuildPath derives the storage-relative path for one instance from its
// normalized tags, per the fixed template:
//
//	SERVICES/PACS/<pacs>/<PatientID>-<PatientName>-<PatientBirthDate>/
//	  <StudyDescription>-<AccessionNumber>-<StudyDate>/
//	  <SeriesNumber:05>-<SeriesDescription>-<hash7(SeriesInstanceUID)>/
//	  <InstanceNumber:04>-<SOPInstanceUID>.dcm
//
// Every component is sanitized independently. Missing optional tags
// substitute their own tag name as a literal placeholder, matching the
// upstream behavior this path format was distilled from.
func BuildPath(pacsName string, patientID, patientName, patientBirthDate string,
	studyDescription, accessionNumber, studyDate string,
	seriesNumber OptionalNumber, seriesDescription, seriesInstanceUID string,
	instanceNumber OptionalNumber, sopInstanceUID string,
) string {
	placeholder := func(v, name string) string {
		if v == "" {
			return name
		}
		return v
	}
	numberSeg := func(n OptionalNumber, width int, name string) string {
		if !n.Present {
			return name
		}
		return fmt.Sprintf("%0*d", width, n.Value)
	}

	patientName = placeholder(patientName, "PatientName")
	patientBirthDate = placeholder(patientBirthDate, "PatientBirthDate")
	studyDescription = placeholder(studyDescription, "StudyDescription")
	accessionNumber = placeholder(accessionNumber, "AccessionNumber")
	seriesDescription = placeholder(seriesDescription, "SeriesDescription")

	patientSeg := fmt.Sprintf("%s-%s-%s", sanitize(patientID), sanitize(patientName), sanitize(patientBirthDate))
	studySeg := fmt.Sprintf("%s-%s-%s", sanitize(studyDescription), sanitize(accessionNumber), sanitize(studyDate))
	seriesSeg := fmt.Sprintf("%s-%s-%s", numberSeg(seriesNumber, 5, "SeriesNumber"), sanitize(seriesDescription), hash7(seriesInstanceUID))
	instanceSeg := fmt.Sprintf("%s-%s.dcm", numberSeg(instanceNumber, 4, "InstanceNumber"), sanitize(sopInstanceUID))

	return fmt.Sprintf("SERVICES/PACS/%s/%s/%s/%s/%s", sanitize(pacsName), patientSeg, studySeg, seriesSeg, instanceSeg)
}
