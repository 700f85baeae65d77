// Copyright 2010-2024 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package milp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// termsPerLine bounds the length of LP file lines; most readers reject lines above 510 bytes.
const termsPerLine = 8

func formatNumber(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+infinity"
	case math.IsInf(v, -1):
		return "-infinity"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func validateForExport(m *Model) error {
	if m == nil {
		return errors.New("nil model")
	}
	for _, v := range m.Variables {
		if v.Name == "" || strings.ContainsAny(v.Name, " \t\n:") {
			return fmt.Errorf("variable name %q cannot be exported", v.Name)
		}
	}
	for _, r := range m.Constraints {
		if r.Name == "" || strings.ContainsAny(r.Name, " \t\n:") {
			return fmt.Errorf("constraint name %q cannot be exported", r.Name)
		}
	}
	return nil
}

// writeLinear writes `terms` in LP syntax. An empty sum is written as a zero multiple of the first
// column, which every LP reader accepts.
func writeLinear(w *bufio.Writer, m *Model, terms []Term) {
	if len(terms) == 0 {
		if len(m.Variables) > 0 {
			fmt.Fprintf(w, " 0 %s", m.Variables[0].Name)
		}
		return
	}
	for i, t := range terms {
		if i > 0 && i%termsPerLine == 0 {
			w.WriteString("\n   ")
		}
		sign := "+"
		c := t.Coeff
		if c < 0 {
			sign = "-"
			c = -c
		}
		if i == 0 && sign == "+" {
			sign = ""
		} else {
			sign += " "
		}
		if c == 1 {
			fmt.Fprintf(w, " %s%s", sign, m.Variables[t.Var].Name)
		} else {
			fmt.Fprintf(w, " %s%s %s", sign, formatNumber(c), m.Variables[t.Var].Name)
		}
	}
}

// WriteLP writes the model in CPLEX LP format. Ranged rows are split into a `_lo` and a `_hi`
// row.
func WriteLP(out io.Writer, m *Model) error {
	if err := validateForExport(m); err != nil {
		return fmt.Errorf("cannot export an invalid model as LP format: %w", err)
	}
	w := bufio.NewWriter(out)
	if m.Name != "" {
		fmt.Fprintf(w, "\\ Model %s\n", m.Name)
	}
	if m.Objective.Maximize {
		w.WriteString("Maximize\n")
	} else {
		w.WriteString("Minimize\n")
	}
	w.WriteString(" obj:")
	writeLinear(w, m, m.Objective.Terms)
	switch off := m.Objective.Offset; {
	case off > 0:
		fmt.Fprintf(w, " + %s", formatNumber(off))
	case off < 0:
		fmt.Fprintf(w, " - %s", formatNumber(-off))
	}
	w.WriteString("\nSubject To\n")
	for _, r := range m.Constraints {
		switch r.Sense() {
		case Equal:
			writeRow(w, m, r.Name, r.Terms, "=", r.Bounds.Start)
		case LessOrEqual:
			writeRow(w, m, r.Name, r.Terms, "<=", r.Bounds.End)
		case GreaterOrEqual:
			writeRow(w, m, r.Name, r.Terms, ">=", r.Bounds.Start)
		case Ranged:
			writeRow(w, m, r.Name+"_lo", r.Terms, ">=", r.Bounds.Start)
			writeRow(w, m, r.Name+"_hi", r.Terms, "<=", r.Bounds.End)
		}
	}
	w.WriteString("Bounds\n")
	var generals, binaries []string
	for _, v := range m.Variables {
		switch v.Type {
		case Binary:
			binaries = append(binaries, v.Name)
			if v.Bounds == NewInterval(0, 1) {
				continue
			}
		case Integer:
			generals = append(generals, v.Name)
		}
		switch {
		case !v.Bounds.HasLower() && !v.Bounds.HasUpper():
			fmt.Fprintf(w, " %s free\n", v.Name)
		case v.Bounds.IsFixed():
			fmt.Fprintf(w, " %s = %s\n", v.Name, formatNumber(v.Bounds.Start))
		default:
			fmt.Fprintf(w, " %s <= %s <= %s\n", formatNumber(v.Bounds.Start), v.Name, formatNumber(v.Bounds.End))
		}
	}
	writeNameList(w, "Generals", generals)
	writeNameList(w, "Binaries", binaries)
	w.WriteString("End\n")
	return w.Flush()
}

func writeRow(w *bufio.Writer, m *Model, name string, terms []Term, op string, rhs float64) {
	fmt.Fprintf(w, " %s:", name)
	writeLinear(w, m, terms)
	fmt.Fprintf(w, " %s %s\n", op, formatNumber(rhs))
}

func writeNameList(w *bufio.Writer, section string, names []string) {
	if len(names) == 0 {
		return
	}
	w.WriteString(section + "\n")
	for i, n := range names {
		if i%termsPerLine == 0 {
			if i > 0 {
				w.WriteString("\n")
			}
			w.WriteString(" ")
		}
		w.WriteString(" " + n)
	}
	w.WriteString("\n")
}

// ExportModelAsLpFormat outputs the model as a string in LP format.
func ExportModelAsLpFormat(m *Model) (string, error) {
	var sb strings.Builder
	if err := WriteLP(&sb, m); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// WriteMPS writes the model in free MPS format. Maximization models are written with a negated
// objective since MPS has no portable sense section.
func WriteMPS(out io.Writer, m *Model) error {
	if err := validateForExport(m); err != nil {
		return fmt.Errorf("cannot export an invalid model as MPS format: %w", err)
	}
	w := bufio.NewWriter(out)
	name := m.Name
	if name == "" {
		name = "model"
	}
	sign := 1.0
	if m.Objective.Maximize {
		sign = -1
	}
	fmt.Fprintf(w, "NAME %s\nROWS\n N obj\n", name)
	kinds := map[Sense]string{Equal: "E", LessOrEqual: "L", GreaterOrEqual: "G", Ranged: "L", Free: "N"}
	for _, r := range m.Constraints {
		fmt.Fprintf(w, " %s %s\n", kinds[r.Sense()], r.Name)
	}

	type entry struct {
		row   string
		coeff float64
	}
	cols := make([][]entry, len(m.Variables))
	for _, t := range m.Objective.Terms {
		cols[t.Var] = append(cols[t.Var], entry{"obj", sign * t.Coeff})
	}
	for _, r := range m.Constraints {
		for _, t := range r.Terms {
			cols[t.Var] = append(cols[t.Var], entry{r.Name, t.Coeff})
		}
	}

	w.WriteString("COLUMNS\n")
	inInt := false
	markers := 0
	for j, v := range m.Variables {
		if v.Type.IsIntegral() != inInt {
			tag := "'INTORG'"
			if inInt {
				tag = "'INTEND'"
			}
			fmt.Fprintf(w, " MARKER%d 'MARKER' %s\n", markers, tag)
			markers++
			inInt = !inInt
		}
		if len(cols[j]) == 0 {
			fmt.Fprintf(w, " %s obj 0\n", v.Name)
			continue
		}
		for _, e := range cols[j] {
			fmt.Fprintf(w, " %s %s %s\n", v.Name, e.row, formatNumber(e.coeff))
		}
	}
	if inInt {
		fmt.Fprintf(w, " MARKER%d 'MARKER' 'INTEND'\n", markers)
	}

	w.WriteString("RHS\n")
	if m.Objective.Offset != 0 {
		fmt.Fprintf(w, " RHS obj %s\n", formatNumber(-sign*m.Objective.Offset))
	}
	var ranges []string
	for _, r := range m.Constraints {
		var rhs float64
		switch r.Sense() {
		case Equal, GreaterOrEqual:
			rhs = r.Bounds.Start
		case LessOrEqual:
			rhs = r.Bounds.End
		case Ranged:
			rhs = r.Bounds.End
			ranges = append(ranges, fmt.Sprintf(" RNG %s %s\n", r.Name, formatNumber(r.Bounds.End-r.Bounds.Start)))
		case Free:
			continue
		}
		if rhs != 0 {
			fmt.Fprintf(w, " RHS %s %s\n", r.Name, formatNumber(rhs))
		}
	}
	if len(ranges) > 0 {
		w.WriteString("RANGES\n")
		for _, l := range ranges {
			w.WriteString(l)
		}
	}

	w.WriteString("BOUNDS\n")
	for _, v := range m.Variables {
		b := v.Bounds
		switch {
		case v.Type == Binary && b == NewInterval(0, 1):
			fmt.Fprintf(w, " BV BND %s\n", v.Name)
		case !b.HasLower() && !b.HasUpper():
			fmt.Fprintf(w, " FR BND %s\n", v.Name)
		case b.IsFixed():
			fmt.Fprintf(w, " FX BND %s %s\n", v.Name, formatNumber(b.Start))
		default:
			if !b.HasLower() {
				fmt.Fprintf(w, " MI BND %s\n", v.Name)
			} else if b.Start != 0 {
				fmt.Fprintf(w, " LO BND %s %s\n", v.Name, formatNumber(b.Start))
			}
			if b.HasUpper() {
				fmt.Fprintf(w, " UP BND %s %s\n", v.Name, formatNumber(b.End))
			} else if v.Type.IsIntegral() {
				// Integer columns default to [0,1] in some readers.
				fmt.Fprintf(w, " PL BND %s\n", v.Name)
			}
		}
	}
	w.WriteString("ENDATA\n")
	return w.Flush()
}

// ExportModelAsMpsFormat outputs the model as a string in free MPS format.
func ExportModelAsMpsFormat(m *Model) (string, error) {
	var sb strings.Builder
	if err := WriteMPS(&sb, m); err != nil {
		return "", err
	}
	return sb.String(), nil
}
