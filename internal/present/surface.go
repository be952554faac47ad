/* SPDX-License-Identifier: GPL-3.0-or-later
 *
 * CryptVaultPlayer
 * Copyright (C) 2026 e1z0 <e1z0@icloud.com>
 *
 * This file is part of CryptVaultPlayer.
 *
 * CryptVaultPlayer is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * CryptVaultPlayer is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with CryptVaultPlayer.  If not, see <https://www.gnu.org/licenses/>.
 */

// Package present hosts the Qt (miqt) presentation window and the
// oto/v2 audio output sink, the two concrete backends behind the
// pipeline's opaque output interfaces.
package present

import (
	"sync"
	"unsafe"

	"github.com/mappu/miqt/qt"
)

// frameBuf is the single-slot, threadsafe holder the paint handler
// reads from; the presenter stage writes a new RGB32 image into it and
// calls RenderPresent to request a repaint.
type frameBuf struct {
	mu sync.RWMutex
	w  int
	h  int
	b  []byte
}

func (f *frameBuf) put(w, h int, rgb32 []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := w * h * 4
	if cap(f.b) < n {
		f.b = make([]byte, n)
	} else {
		f.b = f.b[:n]
	}
	copy(f.b, rgb32)
	f.w, f.h = w, h
}

func (f *frameBuf) get() (w, h int, b []byte) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.w, f.h, f.b
}

// KeyHandler receives every recognized key press (Surface does no
// debouncing of its own); names match the hotkeys
// the controller understands ("space", "left", "right", "up", "down",
// "q").
type KeyHandler func(name string)

// Surface is the single playback window: a fixed-aspect video widget
// plus the event loop's key routing.
type Surface struct {
	win    *qt.QMainWindow
	widget *qt.QWidget
	buf    frameBuf
	onKey  KeyHandler
}

// NewSurface creates the window and video widget. It requires an
// existing QApplication; the caller runs the Qt event loop itself.
func NewSurface(title string, width, height int) *Surface {
	s := &Surface{}
	s.win = qt.NewQMainWindow(nil)
	s.win.SetWindowTitle(title)
	s.win.Resize(width, height)

	s.widget = qt.NewQWidget(nil)
	s.widget.SetMinimumSize2(160, 120)
	s.win.SetCentralWidget(s.widget)

	s.widget.OnPaintEvent(func(super func(event *qt.QPaintEvent), event *qt.QPaintEvent) {
		p := qt.NewQPainter2(s.widget.QPaintDevice)
		defer p.End()
		p.FillRect6(s.widget.Rect(), qt.NewQColor11(0, 0, 0, 255))

		srcW, srcH, data := s.buf.get()
		if srcW <= 0 || srcH <= 0 || len(data) < srcW*srcH*4 {
			return
		}

		img := qt.NewQImage3(srcW, srcH, qt.QImage__Format_RGB32)
		defer img.Delete()
		bits := img.Bits()
		dst := unsafe.Slice((*byte)(bits), srcW*srcH*4)
		copy(dst, data[:srcW*srcH*4])

		dstW, dstH := s.widget.Width(), s.widget.Height()
		if dstW <= 0 || dstH <= 0 {
			return
		}
		sx := float64(dstW) / float64(srcW)
		sy := float64(dstH) / float64(srcH)
		scale := sx
		if sy < scale {
			scale = sy
		}
		outW := int(float64(srcW)*scale + 0.5)
		outH := int(float64(srcH)*scale + 0.5)
		dest := qt.NewQRect4((dstW-outW)/2, (dstH-outH)/2, outW, outH)
		srcRect := qt.NewQRect4(0, 0, srcW, srcH)
		p.SetRenderHint2(qt.QPainter__SmoothPixmapTransform, true)
		p.DrawImage2(dest, img, srcRect)
	})

	s.win.SetFocusPolicy(qt.StrongFocus)
	s.win.OnKeyPressEvent(func(super func(event *qt.QKeyEvent), ev *qt.QKeyEvent) {
		if s.onKey == nil {
			super(ev)
			return
		}
		switch ev.Key() {
		case qt.Key_Space:
			s.onKey("space")
		case qt.Key_Left:
			s.onKey("left")
		case qt.Key_Right:
			s.onKey("right")
		case qt.Key_Up:
			s.onKey("up")
		case qt.Key_Down:
			s.onKey("down")
		case qt.Key_Q:
			s.onKey("q")
		default:
			super(ev)
		}
	})

	return s
}

// OnKey registers the hotkey callback.
func (s *Surface) OnKey(h KeyHandler) { s.onKey = h }

// UpdateYUVTexture converts an I420 picture to packed RGB32 and stores
// it as the next frame to paint.
func (s *Surface) UpdateYUVTexture(width, height int, y, u, v []byte, yStride, uStride, vStride int) {
	rgb := i420ToRGB32(width, height, y, u, v, yStride, uStride, vStride)
	s.buf.put(width, height, rgb)
}

// RenderPresent requests a repaint from any goroutine; Qt marshals the
// actual paint back onto the UI thread.
func (s *Surface) RenderPresent() { s.widget.Update() }

// Show displays the window; it does not start the Qt event loop.
func (s *Surface) Show() { s.win.Show() }

func (s *Surface) Close() { s.win.Close() }

// i420ToRGB32 performs BT.601 YUV->RGB conversion, packing each pixel
// as 0xRRGGBB in the low 24 bits the way QImage::Format_RGB32 expects
// on a little-endian host.
func i420ToRGB32(width, height int, y, u, v []byte, yStride, uStride, vStride int) []byte {
	out := make([]byte, width*height*4)
	for row := 0; row < height; row++ {
		yRow := y[row*yStride:]
		uRow := u[(row/2)*uStride:]
		vRow := v[(row/2)*vStride:]
		for col := 0; col < width; col++ {
			Y := int(yRow[col])
			U := int(uRow[col/2]) - 128
			V := int(vRow[col/2]) - 128

			r := clamp8(Y + (91881*V)>>16)
			g := clamp8(Y - (22554*U+46802*V)>>16)
			b := clamp8(Y + (116130*U)>>16)

			o := (row*width + col) * 4
			out[o+0] = byte(b)
			out[o+1] = byte(g)
			out[o+2] = byte(r)
			out[o+3] = 0xFF
		}
	}
	return out
}

func clamp8(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
