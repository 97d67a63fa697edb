package frontdesk

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"hcsc-backend/internal/inventory/materials"
)

// RunPicker: 端末向けの教材選択。文字を入力すると候補を番号付きで出し、番号で選ぶ。空行で終了
func RunPicker(in io.Reader, out io.Writer, d *Dropdown) error {
	d.Focus()
	defer d.Blur()

	var shown []materials.Material
	sc := bufio.NewScanner(in)
	fmt.Fprint(out, "search> ")
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			break
		}
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(shown) {
			m := shown[n-1]
			if err := d.Pick(m.ID); err != nil {
				fmt.Fprintf(out, "cannot select %s: %v\n", m.Title, err)
			} else {
				fmt.Fprintf(out, "selected %s (%d total)\n", m.Title, len(d.form.Selected()))
			}
			shown = nil
			fmt.Fprint(out, "search> ")
			continue
		}
		d.Type(line)
		shown = d.Items()
		if len(shown) == 0 {
			fmt.Fprintln(out, "  no matches")
		}
		for i, m := range shown {
			fmt.Fprintf(out, "  %2d) %-5s %-6s %3d left  %s\n", i+1, m.Type, m.Level, m.QuantityAvailable, m.Title)
		}
		fmt.Fprint(out, "search> ")
	}
	fmt.Fprintln(out)
	return sc.Err()
}
