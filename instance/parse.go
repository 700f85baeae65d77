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

package instance

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	log "github.com/golang/glog"
)

// lineReader yields the non-blank lines of the input with their 1-based line numbers.
type lineReader struct {
	sc   *bufio.Scanner
	line int
}

func (r *lineReader) next() ([]string, int, error) {
	for r.sc.Scan() {
		r.line++
		if fields := strings.Fields(r.sc.Text()); len(fields) > 0 {
			return fields, r.line, nil
		}
	}
	if err := r.sc.Err(); err != nil {
		return nil, r.line, err
	}
	return nil, r.line, io.EOF
}

// scalar reads a line holding exactly one non-negative integer.
func (r *lineReader) scalar(what string) (int, error) {
	fields, line, err := r.next()
	if errors.Is(err, io.EOF) {
		return 0, formatErrorf(line+1, "unexpected end of file, want %s", what)
	}
	if err != nil {
		return 0, err
	}
	if len(fields) != 1 {
		return 0, formatErrorf(line, "want a single integer for %s, got %d fields", what, len(fields))
	}
	v, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, formatErrorf(line, "%s: %q is not an integer", what, fields[0])
	}
	if v < 0 {
		return 0, formatErrorf(line, "%s must be non-negative, got %d", what, v)
	}
	return v, nil
}

// ids reads a count line followed by that many node ids in [0,n).
func (r *lineReader) ids(what string, n int) ([]int, error) {
	count, err := r.scalar(what + " count")
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, count)
	for k := 0; k < count; k++ {
		id, err := r.scalar(what + " client")
		if err != nil {
			return nil, err
		}
		if id >= n {
			return nil, formatErrorf(r.line, "%s client %d out of range [0,%d)", what, id, n)
		}
		out = append(out, id)
	}
	return out, nil
}

// Parse reads an instance in the text format:
//
//	n
//	courierCost
//	maxCourierDistance
//	r, followed by r lines of one client id each
//	e, followed by e lines of one client id each
//	i j distance cost, one line per known pair
//
// Pair ids are 1-based while refrigerated and exclusive ids are node indices in [0,n). Blank lines
// are ignored. Any malformed or truncated input yields a
// *DataFormatError and no instance.
func Parse(in io.Reader) (*Instance, error) {
	r := &lineReader{sc: bufio.NewScanner(in)}
	var p Params
	var err error
	if p.N, err = r.scalar("client count"); err != nil {
		return nil, err
	}
	if p.N == 0 {
		return nil, formatErrorf(r.line, "client count must be positive")
	}
	if p.CourierCost, err = r.scalar("courier cost"); err != nil {
		return nil, err
	}
	if p.MaxCourierDistance, err = r.scalar("maximum courier distance"); err != nil {
		return nil, err
	}
	if p.Refrigerated, err = r.ids("refrigerated", p.N); err != nil {
		return nil, err
	}
	if p.Exclusive, err = r.ids("exclusive", p.N); err != nil {
		return nil, err
	}
	for {
		fields, line, err := r.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(fields) != 4 {
			return nil, formatErrorf(line, "want \"i j distance cost\", got %d fields", len(fields))
		}
		var v [4]int
		for k, f := range fields {
			if v[k], err = strconv.Atoi(f); err != nil {
				return nil, formatErrorf(line, "%q is not an integer", f)
			}
		}
		if v[0] < 1 || v[0] > p.N || v[1] < 1 || v[1] > p.N {
			return nil, formatErrorf(line, "pair (%d,%d) out of range [1,%d]", v[0], v[1], p.N)
		}
		if v[2] < 0 || v[3] < 0 {
			return nil, formatErrorf(line, "pair (%d,%d) has negative distance or cost", v[0], v[1])
		}
		p.Pairs = append(p.Pairs, Pair{I: v[0] - 1, J: v[1] - 1, Distance: v[2], Cost: v[3]})
	}
	return New(p)
}

// Load parses the instance stored in the file at `path`.
func Load(path string) (*Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	inst, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	log.V(1).Infof("Loaded %s: %v", path, inst)
	return inst, nil
}
