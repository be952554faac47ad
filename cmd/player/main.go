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
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/mappu/miqt/qt"

	"github.com/e1z0/cryptvaultplayer/internal/config"
	"github.com/e1z0/cryptvaultplayer/internal/controller"
	"github.com/e1z0/cryptvaultplayer/internal/memstream"
	"github.com/e1z0/cryptvaultplayer/internal/mp4"
	"github.com/e1z0/cryptvaultplayer/internal/pipeline"
	"github.com/e1z0/cryptvaultplayer/internal/playback"
	"github.com/e1z0/cryptvaultplayer/internal/present"
)

const (
	exitSuccess          = 0
	exitEmptyPassword    = 2
	exitFileMissing      = 3
	exitDecryptFailed    = 4
	exitParseFailed      = 5
	exitNoRequiredTrack  = 6
	exitNoHEVCParamSets  = 7
	exitNoASCBytes       = 8
	exitSurfaceCreateLow = 9
)

var (
	version = "dev"
	build   = "unknown"
)

func main() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	code, err := run()
	if err != nil {
		log.Printf("fatal: %v", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	filePath := flag.String("file", "", "path to the encrypted media file")
	password := flag.String("password", "", "decryption password")
	verbose := flag.Bool("debug", false, "echo logs to stderr in addition to the debug log")
	flag.Parse()

	env, err := config.InitEnvironment()
	if err != nil {
		return exitDecryptFailed, fmt.Errorf("init environment: %w", err)
	}
	if err := config.InitLogging(env, *verbose); err != nil {
		return exitDecryptFailed, fmt.Errorf("init logging: %w", err)
	}
	settings, err := config.Load(env)
	if err != nil {
		log.Printf("config: %v, using defaults", err)
		settings = config.Defaults()
	}

	log.Printf("cryptvaultplayer %s (build %s)", version, build)

	if *password == "" {
		return exitEmptyPassword, errors.New("password must not be empty")
	}
	if _, err := os.Stat(*filePath); err != nil {
		return exitFileMissing, fmt.Errorf("input file: %w", err)
	}

	stream, err := memstream.Open(*filePath, []byte(*password))
	if err != nil || !stream.Valid() {
		return exitDecryptFailed, fmt.Errorf("open encrypted container: %w", err)
	}

	atoms := mp4.ParseTree(stream)
	if len(atoms) == 0 {
		return exitParseFailed, errors.New("container tree is empty")
	}
	tracks := mp4.BuildTracks(stream, atoms)

	var videoTrack, audioTrack *mp4.Track
	for _, t := range tracks {
		switch t.Kind {
		case mp4.KindVideo:
			if videoTrack == nil {
				videoTrack = t
			}
		case mp4.KindAudio:
			if audioTrack == nil {
				audioTrack = t
			}
		}
	}
	if videoTrack == nil || audioTrack == nil {
		return exitNoRequiredTrack, errors.New("container must have one HEVC video track and one AAC audio track")
	}
	if len(videoTrack.NALUArrays) == 0 {
		return exitNoHEVCParamSets, errors.New("HEVC parameter sets absent from hvcC")
	}
	if len(audioTrack.ASCBytes) == 0 {
		return exitNoASCBytes, errors.New("AudioSpecificConfig bytes absent from esds")
	}

	qt.NewQApplication(os.Args)
	qt.QGuiApplication_SetQuitOnLastWindowClosed(true)

	width, height := settings.WindowWidth, settings.WindowHeight
	if int(videoTrack.Width) > 0 {
		width, height = int(videoTrack.Width), int(videoTrack.Height)
	}
	surface := present.NewSurface("CryptVaultPlayer", width, height)

	audioOut, err := present.OpenAudioOutput(int(audioTrack.SampleRate), int(audioTrack.ChannelCount))
	if err != nil {
		return exitSurfaceCreateLow, fmt.Errorf("open audio output: %w", err)
	}

	ctx := playback.New(stream, videoTrack, audioTrack)
	ctx.SetVolume(1.0)

	videoPipe, err := pipeline.NewVideoPipeline(ctx, surface, settings.DecoderThreads)
	if err != nil {
		return exitSurfaceCreateLow + 1, fmt.Errorf("build video pipeline: %w", err)
	}
	audioPipe, err := pipeline.NewAudioPipeline(ctx, audioOut)
	if err != nil {
		return exitSurfaceCreateLow + 2, fmt.Errorf("build audio pipeline: %w", err)
	}

	ctl := controller.New(ctx)

	seekStep := time.Duration(settings.SeekStepSeconds) * time.Second
	if seekStep <= 0 {
		seekStep = controller.DefaultSeekStep
	}

	debounce := time.Duration(settings.HotkeyDebounce) * time.Millisecond
	var lastKey time.Time
	surface.OnKey(func(name string) {
		now := time.Now()
		if now.Sub(lastKey) < debounce {
			return
		}
		lastKey = now
		switch name {
		case "space":
			ctl.TogglePause()
		case "up":
			ctl.AdjustVolume(settings.VolumeStep)
		case "down":
			ctl.AdjustVolume(-settings.VolumeStep)
		case "left":
			ctl.SeekRelative(-seekStep)
		case "right":
			ctl.SeekRelative(seekStep)
		case "q":
			surface.Close()
		}
	})

	videoPipe.Run()
	audioPipe.Run()
	audioOut.ResumeAudioStream()
	ctl.Play()

	surface.Show()
	exitCode := qt.QApplication_Exec()

	ctl.Stop()
	videoPipe.Stop()
	audioPipe.Stop()
	_ = audioOut.Close()
	stream.Close()

	if err := config.Save(env, settings); err != nil {
		log.Printf("config: save failed: %v", err)
	}

	return exitSuccess + exitCode, nil
}
