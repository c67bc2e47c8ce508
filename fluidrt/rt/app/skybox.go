package app

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
)

// Cube face order used by the GPU: +X, -X, +Y, -Y, +Z, -Z.
var skyboxFaceNames = [6]string{"px", "nx", "py", "ny", "pz", "nz"}

// faceDirection maps face-local coordinates s,t in [-1,1] to the
// direction the texel is seen from.
func faceDirection(face int, s, t float32) mgl32.Vec3 {
	switch face {
	case 0:
		return mgl32.Vec3{1, -t, -s}
	case 1:
		return mgl32.Vec3{-1, -t, s}
	case 2:
		return mgl32.Vec3{s, 1, t}
	case 3:
		return mgl32.Vec3{s, -1, -t}
	case 4:
		return mgl32.Vec3{s, -t, 1}
	}
	return mgl32.Vec3{-s, -t, -1}
}

var (
	skyZenith  = mgl32.Vec3{0.18, 0.36, 0.72}
	skyHorizon = mgl32.Vec3{0.75, 0.82, 0.9}
	skyGround  = mgl32.Vec3{0.22, 0.2, 0.18}
	sunDir     = mgl32.Vec3{0.4, 0.6, -0.7}.Normalize()
)

func skyColor(dir mgl32.Vec3) mgl32.Vec3 {
	dir = dir.Normalize()
	y := dir[1]
	var c mgl32.Vec3
	if y >= 0 {
		t := math32.Pow(y, 0.5)
		c = skyHorizon.Mul(1 - t).Add(skyZenith.Mul(t))
	} else {
		t := math32.Min(-y*4, 1)
		c = skyHorizon.Mul(0.6 * (1 - t)).Add(skyGround.Mul(t))
	}
	if sun := dir.Dot(sunDir); sun > 0.995 {
		c = c.Add(mgl32.Vec3{1, 0.9, 0.7}.Mul((sun - 0.995) * 200))
	}
	return c
}

func toByte(v float32) uint8 {
	return uint8(math32.Round(mgl32.Clamp(v, 0, 1) * 255))
}

// ProceduralSkybox renders a gradient sky with a sun into six size x size faces.
func ProceduralSkybox(size int) [6]*image.RGBA {
	size = max(size, 1)
	var faces [6]*image.RGBA
	for f := range faces {
		img := image.NewRGBA(image.Rect(0, 0, size, size))
		for y := 0; y < size; y++ {
			t := 2*(float32(y)+0.5)/float32(size) - 1
			for x := 0; x < size; x++ {
				s := 2*(float32(x)+0.5)/float32(size) - 1
				c := skyColor(faceDirection(f, s, t))
				img.SetRGBA(x, y, color.RGBA{toByte(c[0]), toByte(c[1]), toByte(c[2]), 255})
			}
		}
		faces[f] = img
	}
	return faces
}

// LoadSkybox reads px, nx, py, ny, pz and nz images (png or jpeg) from dir
// and resamples each face to size x size.
func LoadSkybox(dir string, size int) ([6]*image.RGBA, error) {
	var faces [6]*image.RGBA
	size = max(size, 1)
	for i, name := range skyboxFaceNames {
		src, err := loadFace(dir, name)
		if err != nil {
			return faces, err
		}
		faces[i] = resampleFace(src, size)
	}
	return faces, nil
}

func loadFace(dir, name string) (image.Image, error) {
	for _, ext := range []string{".png", ".jpg", ".jpeg"} {
		path := filepath.Join(dir, name+ext)
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("skybox face %s: %w", path, err)
		}
		return img, nil
	}
	return nil, fmt.Errorf("skybox face %q not found in %s", name, dir)
}

func resampleFace(src image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
