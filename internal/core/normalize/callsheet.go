package normalize

import (
	"github.com/liliganster/tp-companion/internal/core/domain"
)

type rawCallSheet struct {
	ProjectName any   `json:"projectName"`
	Production  any   `json:"productionCompany"`
	Date        any   `json:"date"`
	CallTime    any   `json:"callTime"`
	Confidence  any   `json:"confidence"`
	Locations   []any `json:"locations"`
}

// CallSheet converts the raw AI answer for a call sheet into a result plus
// ordered location rows. Only blank entries are skipped; a place listed twice
// is a second stop on the route and keeps its own row.
func CallSheet(jobID, raw string) (domain.CallSheetExtraction, error) {
	var in rawCallSheet
	if err := DecodeObject(raw, &in); err != nil {
		return domain.CallSheetExtraction{}, err
	}

	out := domain.CallSheetExtraction{
		Result: domain.CallSheetResult{
			JobID:             jobID,
			ProjectName:       Text(in.ProjectName),
			ProductionCompany: Text(in.Production),
			Date:              Date(Text(in.Date)),
			CallTime:          Text(in.CallTime),
			Confidence:        Confidence(in.Confidence),
		},
		Locations: []domain.ExtractedLocation{},
	}

	for _, item := range in.Locations {
		rawText, label := locationText(item)
		if rawText == "" {
			continue
		}
		out.Locations = append(out.Locations, domain.ExtractedLocation{
			JobID:    jobID,
			Position: len(out.Locations),
			RawText:  rawText,
			Label:    label,
		})
	}
	return out, nil
}

func locationText(item any) (string, string) {
	switch t := item.(type) {
	case string:
		return Text(t), ""
	case map[string]any:
		return Text(pick(t, "address", "location", "formattedAddress", "name")), Text(pick(t, "label", "type", "description"))
	default:
		return "", ""
	}
}
