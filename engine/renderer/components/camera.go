package components

import (
	"github.com/chewxy/math32"
	"github.com/spaghettifunk/vesta/engine/math"
)

/** @brief The six clip planes of a view-projection matrix, normalised. */
type Frustum struct {
	Planes [6]math.Vec4
}

const (
	FrustumLeft = iota
	FrustumRight
	FrustumTop
	FrustumBottom
	FrustumBack
	FrustumFront
)

// NewFrustum extracts the planes of m (Gribb-Hartmann).
func NewFrustum(m math.Mat4) Frustum {
	row := func(r int) math.Vec4 {
		return math.Vec4{X: m.At(r, 0), Y: m.At(r, 1), Z: m.At(r, 2), W: m.At(r, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)
	f := Frustum{}
	f.Planes[FrustumLeft] = r3.Add(r0)
	f.Planes[FrustumRight] = r3.Sub(r0)
	f.Planes[FrustumTop] = r3.Sub(r1)
	f.Planes[FrustumBottom] = r3.Add(r1)
	f.Planes[FrustumBack] = r3.Add(r2)
	f.Planes[FrustumFront] = r3.Sub(r2)
	for i, p := range f.Planes {
		length := math32.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
		if length > 0 {
			f.Planes[i] = p.MulScalar(1 / length)
		}
	}
	return f
}

/**
 * @brief The camera block read by every scene shader.
 */
type CameraUBO struct {
	View     math.Mat4
	Proj     math.Mat4
	ProjView math.Mat4
	Eye      math.Vec4
	R, V     math.Vec4
	Frustum  Frustum
	W, H     float32
	Fov      float32
	ZNear    float32
	ZFar     float32
	_        [3]float32
}

/**
 * @brief A look-at perspective camera. Setters only mark the view or the
 * projection incoherent; Flush rebuilds the uniform block.
 */
type PerspectiveCamera struct {
	location math.Vec3
	focus    math.Vec3
	worldUp  math.Vec3
	/** @brief Vertical field of view in radians. */
	fov   float32
	zNear float32
	zFar  float32

	width, height uint32

	viewIncoherent bool
	projIncoherent bool
	ubo            CameraUBO
}

/** @brief The default vertical field of view. */
const DefaultFOV float32 = 45.0 * math.K_DEG2RAD_MULTIPLIER

// NewPerspectiveCamera looks from location at focus. zNear should stay above
// 0.1 to keep depth precision.
func NewPerspectiveCamera(location, focus math.Vec3) *PerspectiveCamera {
	return &PerspectiveCamera{
		location:       location,
		focus:          focus,
		worldUp:        math.NewVec3Up(),
		fov:            DefaultFOV,
		zNear:          0.1,
		zFar:           1000,
		width:          1,
		height:         1,
		viewIncoherent: true,
		projIncoherent: true,
	}
}

func (c *PerspectiveCamera) Location() math.Vec3 { return c.location }
func (c *PerspectiveCamera) Focus() math.Vec3    { return c.focus }
func (c *PerspectiveCamera) WorldUp() math.Vec3  { return c.worldUp }
func (c *PerspectiveCamera) FOV() float32        { return c.fov }
func (c *PerspectiveCamera) ZNear() float32      { return c.zNear }
func (c *PerspectiveCamera) ZFar() float32       { return c.zFar }
func (c *PerspectiveCamera) Width() uint32       { return c.width }
func (c *PerspectiveCamera) Height() uint32      { return c.height }

func (c *PerspectiveCamera) View() math.Mat4 {
	return math.NewMat4LookAt(c.location, c.focus, c.worldUp)
}

func (c *PerspectiveCamera) Projection() math.Mat4 {
	return math.NewMat4Perspective(c.fov, float32(c.width)/float32(c.height), c.zNear, c.zFar)
}

func (c *PerspectiveCamera) SetLocation(location math.Vec3) {
	c.location = location
	c.viewIncoherent = true
}

func (c *PerspectiveCamera) FocusOn(focus math.Vec3) {
	c.focus = focus
	c.viewIncoherent = true
}

func (c *PerspectiveCamera) ChangeWorldUp(up math.Vec3) {
	c.worldUp = up
	c.viewIncoherent = true
}

// ChangeFOV sets the vertical field of view in radians.
func (c *PerspectiveCamera) ChangeFOV(fov float32) {
	c.fov = fov
	c.projIncoherent = true
}

func (c *PerspectiveCamera) ChangeZNear(zNear float32) {
	c.zNear = zNear
	c.projIncoherent = true
}

func (c *PerspectiveCamera) ChangeZFar(zFar float32) {
	c.zFar = zFar
	c.projIncoherent = true
}

func (c *PerspectiveCamera) ChangeDimension(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	c.width, c.height = width, height
	c.projIncoherent = true
}

func (c *PerspectiveCamera) forward() math.Vec3 {
	return c.focus.Sub(c.location).Normalize()
}

func (c *PerspectiveCamera) right() math.Vec3 {
	return c.forward().Cross(c.worldUp).Normalize()
}

// translate moves location and focus together.
func (c *PerspectiveCamera) translate(delta math.Vec3) {
	c.location = c.location.Add(delta)
	c.focus = c.focus.Add(delta)
	c.viewIncoherent = true
}

func (c *PerspectiveCamera) MoveForward(amount float32) {
	c.translate(c.forward().MulScalar(amount))
}

func (c *PerspectiveCamera) MoveRight(amount float32) {
	c.translate(c.right().MulScalar(amount))
}

func (c *PerspectiveCamera) MoveUp(amount float32) {
	c.translate(c.worldUp.Normalize().MulScalar(amount))
}

// Yaw turns the focus around the world up axis through the location.
func (c *PerspectiveCamera) Yaw(amount float32) {
	q := math.NewQuatFromAxisAngle(c.worldUp, amount, true)
	dir := c.focus.Sub(c.location).Transform(q.ToMat4())
	c.FocusOn(c.location.Add(dir))
}

// Pitch tilts the focus up or down, stopping one degree short of the poles.
func (c *PerspectiveCamera) Pitch(amount float32) {
	dir := c.focus.Sub(c.location)
	up := c.worldUp.Normalize()
	current := math32.Asin(math.Clamp(dir.Normalize().Dot(up), -1, 1))
	limit := float32(1.55334306) // 89 degrees
	target := math.Clamp(current+amount, -limit, limit)
	q := math.NewQuatFromAxisAngle(c.right(), target-current, true)
	c.FocusOn(c.location.Add(dir.Transform(q.ToMat4())))
}

// Incoherent reports whether the uniform block must be rebuilt.
func (c *PerspectiveCamera) Incoherent() bool {
	return c.viewIncoherent || c.projIncoherent
}

// Flush rebuilds the uniform block and marks the camera coherent.
func (c *PerspectiveCamera) Flush() CameraUBO {
	view, proj := c.View(), c.Projection()
	projView := proj.Mul(view)
	fwd := c.forward()
	r := c.right()
	v := r.Cross(fwd)
	c.ubo = CameraUBO{
		View:     view,
		Proj:     proj,
		ProjView: projView,
		Eye:      c.location.ToVec4(1),
		R:        r.ToVec4(0),
		V:        v.ToVec4(0),
		Frustum:  NewFrustum(projView),
		W:        float32(c.width),
		H:        float32(c.height),
		Fov:      c.fov,
		ZNear:    c.zNear,
		ZFar:     c.zFar,
	}
	c.viewIncoherent = false
	c.projIncoherent = false
	return c.ubo
}
