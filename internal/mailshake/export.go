package mailshake

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// NoWonLeadsBody is written instead of a CSV when there is nothing to export.
const NoWonLeadsBody = "No won leads found\n"

// wonLeadPriorityColumns lead the export, in this order, when present.
var wonLeadPriorityColumns = []string{
	"campaignId",
	"lead.emailAddress",
	"lead.firstName",
	"lead.lastName",
	"lead.company",
	"lead.title",
	"lead.phoneNumber",
	"status",
	"createdDate",
	"closedDate",
	"id",
	"lead.id",
}

// flattenedParents are nested objects expanded one level into "parent.child" columns.
var flattenedParents = map[string]bool{"lead": true, "recipient": true}

// WriteWonLeadsCSV renders leads as a full-field CSV. Priority columns come
// first, the rest follow sorted. Every cell is quoted. With no leads the body
// is NoWonLeadsBody.
func WriteWonLeadsCSV(w io.Writer, leads []WonLead) error {
	if len(leads) == 0 {
		_, err := io.WriteString(w, NoWonLeadsBody)
		return err
	}

	rows := make([]map[string]string, len(leads))
	present := map[string]bool{}
	for i, l := range leads {
		rows[i] = flattenLead(l)
		for k := range rows[i] {
			present[k] = true
		}
	}

	columns := make([]string, 0, len(present))
	priority := map[string]bool{}
	for _, col := range wonLeadPriorityColumns {
		priority[col] = true
		if present[col] {
			columns = append(columns, col)
		}
	}
	var rest []string
	for col := range present {
		if !priority[col] {
			rest = append(rest, col)
		}
	}
	sort.Strings(rest)
	columns = append(columns, rest...)

	bw := bufio.NewWriter(w)
	writeCSVLine(bw, columns)
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = row[col]
		}
		writeCSVLine(bw, cells)
	}
	return bw.Flush()
}

func flattenLead(l WonLead) map[string]string {
	row := make(map[string]string, len(l.Fields)+1)
	for k, v := range l.Fields {
		if nested, ok := v.(map[string]any); ok && flattenedParents[k] {
			for ck, cv := range nested {
				row[k+"."+ck] = cellValue(cv)
			}
			continue
		}
		row[k] = cellValue(v)
	}
	row["campaignId"] = l.CampaignID
	return row
}

func cellValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool, float64, int, int64:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func writeCSVLine(w *bufio.Writer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(c, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}
