package prefill

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/david/eu-grants-monitor/internal/models"
)

const budgetSheet = "Budget"

// BudgetWorkbook renders the budget as an XLSX sheet with numeric amount cells
// and a SUM row over the cost categories.
func (gen *Generator) BudgetWorkbook(form Form, g models.Grant) (Document, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", budgetSheet); err != nil {
		return Document{}, fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return Document{}, fmt.Errorf("create style: %w", err)
	}

	set := func(cell string, v any) {
		if err == nil {
			err = f.SetCellValue(budgetSheet, cell, v)
		}
	}
	set("A1", "EU Grant Budget Template - "+g.Title)
	set("A2", "Grant ID: "+g.ID)
	set("A3", "Generated: "+gen.now().Format(timestampLayout))
	set("A5", "Category")
	set("B5", "Amount (EUR)")
	set("C5", "Notes")

	row := 6
	var firstCost, lastCost int
	for _, field := range budgetFields(form) {
		amount, convErr := strconv.ParseFloat(field.Value, 64)
		if convErr != nil {
			continue
		}
		set(cellName(1, row), field.Label())
		set(cellName(2, row), amount)
		set(cellName(3, row), field.UserPrompt)
		if isCostCategory(field.Name) {
			if firstCost == 0 {
				firstCost = row
			}
			lastCost = row
		}
		row++
	}
	if err != nil {
		return Document{}, fmt.Errorf("write budget cells: %w", err)
	}

	if firstCost > 0 {
		set(cellName(1, row), "Sum of categories")
		if err == nil {
			err = f.SetCellFormula(budgetSheet, cellName(2, row), fmt.Sprintf("SUM(B%d:B%d)", firstCost, lastCost))
		}
		if err != nil {
			return Document{}, fmt.Errorf("write budget total: %w", err)
		}
	}

	if err := f.SetCellStyle(budgetSheet, "A5", "C5", bold); err != nil {
		return Document{}, fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(budgetSheet, "A", "A", 28); err != nil {
		return Document{}, fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(budgetSheet, "C", "C", 50); err != nil {
		return Document{}, fmt.Errorf("set column width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return Document{}, fmt.Errorf("encode workbook: %w", err)
	}
	return gen.document(form.Name+"_budget.xlsx", "xlsx", buf.Bytes(), form.Status(), form.MissingCritical()), nil
}

func isCostCategory(name string) bool {
	switch name {
	case "personnel_costs", "equipment_costs", "travel_costs", "other_costs", "indirect_costs":
		return true
	}
	return false
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
