// Copyright ©2025 The h10 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"sync"

	"gioui.org/app"
	"gioui.org/font/gofont"
	"gioui.org/io/event"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/widget"
	"gioui.org/widget/material"
	"gioui.org/x/explorer"
	"github.com/rs/zerolog/log"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freesans"

	"github.com/athall/h10/internal/ring"
	"github.com/athall/h10/pmd"
	"github.com/athall/h10/quality"
)

const (
	cardWidth  = 296
	cardHeight = 128
	rateHeight = 64

	// Redraw the ECG strip after this many new samples rather than on
	// every notification.
	redrawEvery = 16
)

// view renders heart rate and ECG data onto a card image and publishes
// snapshots for the window loop.
type view struct {
	update chan image.Image

	mu      sync.Mutex
	card    *image.Gray
	rate    draw.Image
	strip   draw.Image
	trace   *ring.Buffer[float64]
	pending int
}

func newView() *view {
	card := image.NewGray(image.Rect(0, 0, cardWidth, cardHeight))
	v := &view{
		update: make(chan image.Image, 1),
		card:   card,
		rate:   panel(card, image.Rect(0, 0, cardWidth, rateHeight)),
		strip:  panel(card, image.Rect(0, rateHeight, cardWidth, cardHeight)),
		trace:  ring.NewBuffer[float64](cardWidth),
	}
	blank(v.card)
	return v
}

// addRate redraws the heart rate panel with the latest reading.
func (v *view) addRate(bpm int, stats quality.Stats) {
	v.mu.Lock()
	defer v.mu.Unlock()
	blank(v.rate)

	const yOffset = -10
	black := color.RGBA{A: 0xff}

	bpmText := strconv.Itoa(bpm)
	bpmFont := &freesans.Bold18pt7b
	_, bpmW := tinyfont.LineWidth(bpmFont, bpmText)
	tinyfont.WriteLine(
		fontTarget{v.rate},
		bpmFont,
		int16(cardWidth-int(bpmW))/2, int16(int(bpmFont.YAdvance)+yOffset), bpmText,
		black,
	)

	qText := "quality " + strconv.FormatFloat(stats.SignalQuality, 'f', 0, 64) + "%"
	qFont := &freesans.Regular9pt7b
	_, qW := tinyfont.LineWidth(qFont, qText)
	tinyfont.WriteLine(
		fontTarget{v.rate},
		qFont,
		int16(cardWidth-int(qW))/2, int16(int(bpmFont.YAdvance)+int(qFont.YAdvance)+yOffset), qText,
		black,
	)

	v.publish()
}

// addECG buffers a sample and periodically redraws the trace strip once
// a full screen of samples has been collected.
func (v *view) addECG(sample pmd.Sample) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.trace.Push(sample.Microvolts)
	v.pending++
	if v.trace.Len() < v.trace.Cap() || v.pending < redrawEvery {
		return
	}
	v.pending = 0
	v.plotTrace()
	v.publish()
}

func (v *view) plotTrace() {
	blank(v.strip)
	n := v.trace.Len()
	lo := v.trace.At(0)
	hi := lo
	for i := 1; i < n; i++ {
		lo = min(lo, v.trace.At(i))
		hi = max(hi, v.trace.At(i))
	}
	const minSpread = 300 // µV
	height := v.strip.Bounds().Dy()
	prev := plotY(v.trace.At(0), lo, hi, minSpread, height)
	for i := 1; i < n; i++ {
		y := plotY(v.trace.At(i), lo, hi, minSpread, height)
		line(v.strip, i-1, prev, i, y, color.Black)
		prev = y
	}
}

// publish hands the window loop a snapshot of the card, keeping only
// the latest when the loop falls behind.
func (v *view) publish() {
	snap := image.NewGray(v.card.Rect)
	copy(snap.Pix, v.card.Pix)
	select {
	case <-v.update:
	default:
	}
	select {
	case v.update <- snap:
	default:
	}
}

// plotY maps s within [lo, hi], widened to span at least minSpread,
// onto a pixel row with larger values higher on the strip.
func plotY(s, lo, hi, minSpread float64, height int) int {
	spread := hi - lo
	if spread < minSpread {
		lo -= (minSpread - spread) / 2
		spread = minSpread
	}
	y := int(float64(height-1) * (s - lo) / spread)
	return (height - 1) - y
}

// runView drives the window, displaying published snapshots and saving
// them to PNG on demand.
func runView(w *app.Window, v *view) error {
	expl := explorer.NewExplorer(w)
	th := material.NewTheme()
	th.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()))

	events := make(chan event.Event)
	ack := make(chan struct{})
	go func() {
		for {
			ev := w.Event()
			events <- ev
			<-ack
			if _, ok := ev.(app.DestroyEvent); ok {
				return
			}
		}
	}()

	var save widget.Clickable
	var img image.Image
	var ops op.Ops
	for {
		select {
		case img = <-v.update:
			w.Invalidate()
		case e := <-events:
			expl.ListenEvents(e)
			switch e := e.(type) {
			case app.DestroyEvent:
				ack <- struct{}{}
				return e.Err
			case app.FrameEvent:
				gtx := app.NewContext(&ops, e)
				if save.Clicked(gtx) && img != nil {
					go saveSnapshot(expl, img)
				}
				layout.Flex{Axis: layout.Vertical}.Layout(gtx,
					layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
						if img == nil {
							return layout.Dimensions{}
						}
						return widget.Image{
							Src: paint.NewImageOp(img),
							Fit: widget.Contain,
						}.Layout(gtx)
					}),
					layout.Rigid(material.Button(th, &save, "Save trace").Layout),
				)
				e.Frame(gtx.Ops)
			}
			ack <- struct{}{}
		}
	}
}

func saveSnapshot(expl *explorer.Explorer, img image.Image) {
	f, err := expl.CreateFile("polar_h10_trace.png")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create snapshot file")
		return
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		log.Warn().Err(err).Msg("Failed to save snapshot")
	}
}

// panel returns a view of rect within img addressed from (0, 0).
func panel(img *image.Gray, rect image.Rectangle) draw.Image {
	return offsetImage{Image: img.SubImage(rect).(draw.Image), min: rect.Min}
}

type offsetImage struct {
	draw.Image
	min image.Point
}

func (p offsetImage) Set(x, y int, c color.Color) { p.Image.Set(x+p.min.X, y+p.min.Y, c) }

func (p offsetImage) At(x, y int) color.Color { return p.Image.At(x+p.min.X, y+p.min.Y) }

func (p offsetImage) Bounds() image.Rectangle {
	return image.Rectangle{Max: p.Image.Bounds().Size()}
}

// fontTarget adapts a draw.Image to the tinyfont display interface.
type fontTarget struct {
	img draw.Image
}

func (t fontTarget) SetPixel(x, y int16, c color.RGBA) { t.img.Set(int(x), int(y), c) }

func (t fontTarget) Size() (x, y int16) {
	b := t.img.Bounds()
	return int16(b.Dx()), int16(b.Dy())
}

func (t fontTarget) Display() error { return nil }

func blank(img draw.Image) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.Set(x, y, color.White)
		}
	}
}

func line(img draw.Image, x0, y0, x1, y1 int, c color.Color) {
	dx, sx := absSign(x1 - x0)
	dy, sy := absSign(y1 - y0)
	dy = -dy
	err := dx + dy
	for {
		img.Set(x0, y0, c)
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				return
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				return
			}
			err += dx
			y0 += sy
		}
	}
}

func absSign(a int) (abs, sign int) {
	if a < 0 {
		return -a, -1
	}
	return a, 1
}
