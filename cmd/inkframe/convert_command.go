package main

import (
	"bytes"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"inkframe/internal/codec"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var outputFlag string
	var formatFlag string
	var verify bool

	cmd := &cobra.Command{
		Use:   "convert <image>",
		Short: "Convert an image for the configured device without serving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := ctx.converter()
			if err != nil {
				return err
			}
			input := args[0]
			data, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("read %s: %w", input, err)
			}
			img, _, err := conv.Decode(data)
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}

			format := strings.ToLower(strings.TrimSpace(formatFlag))
			output := strings.TrimSpace(outputFlag)
			if output == "" {
				output = defaultConvertOutput(input, format)
			}

			opts := conv.Options()
			var body []byte
			var summary string
			switch format {
			case "packed":
				res, err := conv.Convert(img)
				if err != nil {
					return err
				}
				if verify {
					if err := verifyPacked(res); err != nil {
						return err
					}
				}
				body = res.Packed
				summary = fmt.Sprintf("%dx%d, 4 bits per pixel", res.Width, res.Height)
			case "bmp":
				raster, err := conv.Quantize(img, false)
				if err != nil {
					return err
				}
				if body, err = codec.BMPBytes(raster, opts.Palette); err != nil {
					return err
				}
				summary = fmt.Sprintf("%dx%d paletted BMP", raster.Width, raster.Height)
			case "png":
				raster, err := conv.Quantize(img, true)
				if err != nil {
					return err
				}
				var buf bytes.Buffer
				if err := png.Encode(&buf, raster.Paletted(opts.Palette)); err != nil {
					return fmt.Errorf("encode preview: %w", err)
				}
				body = buf.Bytes()
				summary = fmt.Sprintf("%dx%d preview", raster.Width, raster.Height)
			default:
				return fmt.Errorf("unknown format %q (want packed, bmp, or png)", formatFlag)
			}

			if err := os.WriteFile(output, body, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %d bytes to %s (%s, fit=%s, dither=%s)\n", len(body), output, summary, opts.Fit, opts.Dither)
			if verify && format == "packed" {
				fmt.Fprintln(out, "Packed buffer verified against index raster")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file (defaults next to the input)")
	cmd.Flags().StringVarP(&formatFlag, "format", "f", "packed", "Output format: packed, bmp, or png")
	cmd.Flags().BoolVar(&verify, "verify", false, "Unpack the packed buffer and compare it with the index raster")
	return cmd
}

func defaultConvertOutput(input, format string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	switch format {
	case "bmp":
		return base + ".bmp"
	case "png":
		return base + "-preview.png"
	default:
		return base + ".bin"
	}
}

func verifyPacked(res *codec.Result) error {
	unpacked, err := codec.Unpack(res.Packed, res.Width, res.Height)
	if err != nil {
		return fmt.Errorf("verify packed buffer: %w", err)
	}
	if !bytes.Equal(unpacked.Pix, res.Indices.Pix) {
		return fmt.Errorf("verify packed buffer: unpacked indices differ from the dithered raster")
	}
	return nil
}
