// Command frontdesk drives the front-desk enrollment flow from a terminal.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"hcsc-backend/internal/frontdesk"
	"hcsc-backend/internal/inventory/materials"
	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/ids"
	"hcsc-backend/internal/platform/logger"
)

type globals struct {
	server string
	token  string
	asJSON bool
}

func main() {
	_ = godotenv.Load()
	logger.Configure(logger.Config{Level: envOr("LOG_LEVEL", "warn"), Pretty: true, Output: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRoot().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func newRoot() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "frontdesk",
		Short:         "Front-desk client for the HCSC lending API",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&g.server, "server", envOr("FRONTDESK_SERVER", "https://localhost:8443"), "API base URL")
	root.PersistentFlags().StringVar(&g.token, "token", os.Getenv("FRONTDESK_TOKEN"), "bearer token for staff endpoints")
	root.PersistentFlags().BoolVar(&g.asJSON, "json", false, "print raw JSON")

	root.AddCommand(lookupCmd(g), materialsCmd(g), borrowCmd(g), returnCmd(g), watchCmd(g))
	return root
}

func (g *globals) client() *frontdesk.Client {
	return frontdesk.NewClient(g.server, nil).WithToken(g.token)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func lookupCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <phone>",
		Short: "Look up a student and their outstanding materials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := g.client().CheckPhone(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if g.asJSON {
				return printJSON(cmd, res)
			}
			out := cmd.OutOrStdout()
			if res.Student == nil {
				fmt.Fprintln(out, "new student")
				return nil
			}
			fmt.Fprintf(out, "%s (%s) type=%s\n", res.Student.Name, res.Student.Phone, res.Student.StudentType)
			for _, b := range res.BorrowedMaterials {
				fmt.Fprintf(out, "  %-26s %-8s due %s  %s\n", b.MaterialID, b.Status, b.DueDate.Format(time.DateOnly), b.Title)
			}
			return nil
		},
	}
}

func materialsCmd(g *globals) *cobra.Command {
	var q frontdesk.MaterialQuery
	cmd := &cobra.Command{
		Use:   "materials",
		Short: "List materials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ms, err := g.client().Materials(cmd.Context(), q)
			if err != nil {
				return err
			}
			if g.asJSON {
				return printJSON(cmd, ms)
			}
			for _, m := range ms {
				fmt.Fprintf(cmd.OutOrStdout(), "%-26s %-5s %-6s %3d/%-3d %s\n",
					m.ID, m.Type, m.Level, m.QuantityAvailable, m.QuantityTotal, m.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Level, "level", "", "filter by level")
	cmd.Flags().StringVar(&q.Type, "type", "", "book|gift|other")
	cmd.Flags().StringVar(&q.Search, "search", "", "accent-insensitive title search")
	cmd.Flags().BoolVar(&q.InStock, "in-stock", false, "only materials with stock")
	return cmd
}

func borrowCmd(g *globals) *cobra.Command {
	var (
		f       frontdesk.Form
		mats    []string
		images  []string
		idemKey string
		pick    bool
	)
	cmd := &cobra.Command{
		Use:   "borrow",
		Short: "Enroll a student and borrow materials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c := g.client()
			catalog, err := c.Materials(ctx, frontdesk.MaterialQuery{})
			if err != nil {
				return err
			}
			form := frontdesk.NewForm(catalog)
			form.Name, form.Email, form.Phone, form.Level = f.Name, f.Email, f.Phone, f.Level
			form.Purpose, form.StaffID, form.Notes = f.Purpose, f.StaffID, f.Notes

			if look, err := c.CheckPhone(ctx, form.Phone); err == nil {
				form.ApplyLookup(look)
			}
			for _, t := range []materials.Type{materials.TypeBook, materials.TypeGift, materials.TypeOther} {
				form.ToggleType(t)
			}
			for _, id := range mats {
				if err := form.Select(id); err != nil {
					return fmt.Errorf("%s: %w", id, err)
				}
			}
			if pick {
				dd := frontdesk.NewDropdown(form, frontdesk.DefaultHideDelay)
				if err := frontdesk.RunPicker(cmd.InOrStdin(), cmd.ErrOrStderr(), dd); err != nil {
					return err
				}
			}
			for _, p := range images {
				img, err := compressFile(p)
				if err != nil {
					return err
				}
				if err := form.AddImage(img); err != nil {
					return err
				}
			}
			if idemKey == "" {
				if idemKey, err = ids.NewULID().New(); err != nil {
					return err
				}
			}
			res, err := c.Submit(ctx, form, idemKey)
			if err != nil {
				return err
			}
			if g.asJSON {
				return printJSON(cmd, res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s enrollment=%s due=%s\n", res.Borrow.Message, res.Borrow.EnrollmentID, res.Borrow.DueDate)
			if res.Warning != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", res.Warning)
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.Phone, "phone", "", "student phone (required)")
	fl.StringVar(&f.Name, "name", "", "student name")
	fl.StringVar(&f.Email, "email", "", "student email")
	fl.StringVar(&f.Level, "level", "", "student level")
	fl.StringVar(&f.Purpose, "purpose", "", "purpose, becomes student_type for new students")
	fl.StringVar(&f.StaffID, "staff", "", "sales staff id (required)")
	fl.StringVar(&f.Notes, "notes", "", "enrollment notes")
	fl.StringSliceVar(&mats, "material", nil, "material id, repeatable")
	fl.StringSliceVar(&images, "image", nil, "image file, repeatable (max 3)")
	fl.StringVar(&idemKey, "idempotency-key", "", "reuse to retry safely")
	fl.BoolVar(&pick, "pick", false, "search and pick materials interactively from stdin")
	_ = cmd.MarkFlagRequired("phone")
	_ = cmd.MarkFlagRequired("staff")
	cmd.MarkFlagsOneRequired("material", "pick")
	return cmd
}

func compressFile(path string) (frontdesk.Image, error) {
	fh, err := os.Open(path)
	if err != nil {
		return frontdesk.Image{}, err
	}
	defer fh.Close()
	return frontdesk.Compress(fh, path)
}

func returnCmd(g *globals) *cobra.Command {
	var phone, material, idemKey string
	cmd := &cobra.Command{
		Use:   "return",
		Short: "Return one borrowed material",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if idemKey == "" {
				var err error
				if idemKey, err = ids.NewULID().New(); err != nil {
					return err
				}
			}
			res, err := g.client().Return(cmd.Context(), phone, material, idemKey)
			if err != nil {
				return err
			}
			if g.asJSON {
				return printJSON(cmd, res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s record=%s date=%s\n", res.Message, res.MaterialRecordID, res.ReturnDate)
			return nil
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "student phone")
	cmd.Flags().StringVar(&material, "material", "", "material id")
	cmd.Flags().StringVar(&idemKey, "idempotency-key", "", "reuse to retry safely")
	_ = cmd.MarkFlagRequired("phone")
	_ = cmd.MarkFlagRequired("material")
	return cmd
}

// watch: 標準入力の各行を電話番号の入力として扱い、デバウンスして照会する
func watchCmd(g *globals) *cobra.Command {
	var delay time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Read phone numbers from stdin and look them up as the form would",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := g.client()
			out := cmd.OutOrStdout()
			seen := make(chan string, 8)
			d := frontdesk.NewLookupDebouncer(delay, c.CheckPhone, func(r frontdesk.LookupResult) {
				switch {
				case r.Err != nil:
					fmt.Fprintf(out, "%s: error: %v\n", r.Phone, r.Err)
				case r.Resp.Student == nil:
					fmt.Fprintf(out, "%s: new student\n", r.Phone)
				default:
					fmt.Fprintf(out, "%s: %s, %d outstanding\n", r.Phone, r.Resp.Student.Name, len(r.Resp.BorrowedMaterials))
				}
				select {
				case seen <- r.Phone:
				default:
				}
			})
			defer d.Close()

			sc := bufio.NewScanner(cmd.InOrStdin())
			for sc.Scan() {
				d.Set(sc.Text())
			}
			if err := sc.Err(); err != nil {
				return err
			}
			last := d.Current()
			if !api.IsVNPhone(last) {
				return nil
			}
			// 最後の入力の照会結果を待つ
			timeout := time.After(delay + 30*time.Second)
			for {
				select {
				case p := <-seen:
					if p == last {
						return nil
					}
				case <-timeout:
					return fmt.Errorf("lookup for %s timed out", last)
				case <-cmd.Context().Done():
					return nil
				}
			}
		},
	}
	cmd.Flags().DurationVar(&delay, "delay", frontdesk.DefaultLookupDelay, "debounce delay")
	return cmd
}
