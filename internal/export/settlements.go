// Package export renders ledgers as spreadsheets.
package export

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"hireline/internal/domain"
)

const SettlementSheet = "Settlements"

var settlementHeaders = []string{
	"ID", "Tenant", "Vacancy", "Member", "Stage", "Stage name",
	"Amount", "Fee", "Net", "Beneficiary", "Gate", "Actor", "Passed", "Time",
}

// Settlements writes one row per settlement step, followed by a totals row
// for amount, fee and net. A failure to close the workbook is returned when
// nothing else failed first.
func Settlements(list []domain.Settlement) (buf *bytes.Buffer, err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			buf, err = nil, errors.Wrap(cerr, "close xlsx")
		}
	}()
	sheet := "Sheet1"
	row, err := writeHeader(f, sheet, 0, settlementHeaders)
	if err != nil {
		return nil, errors.Wrap(err, "write xlsx header")
	}
	var amount, fee, net int64
	for _, s := range list {
		row++
		values := []interface{}{
			s.ID, s.TenantID, s.VacancyID, s.MemberID, s.StageIndex, s.StageName,
			s.Amount, s.Fee, s.Net, s.Beneficiary, string(s.Gate), s.ActorID, s.Passed, s.CreatedAt,
		}
		for i, v := range values {
			if err := writeColumn(f, sheet, i+1, row, v); err != nil {
				return nil, errors.Wrapf(err, "write settlement %s", s.ID)
			}
		}
		amount += s.Amount
		fee += s.Fee
		net += s.Net
	}
	row++
	for col, v := range map[int]interface{}{1: "Total", 7: amount, 8: fee, 9: net} {
		if err := writeColumn(f, sheet, col, row, v); err != nil {
			return nil, errors.Wrap(err, "write xlsx totals")
		}
	}
	if err := f.SetSheetName(sheet, SettlementSheet); err != nil {
		return nil, errors.Wrap(err, "rename sheet")
	}
	return f.WriteToBuffer()
}
