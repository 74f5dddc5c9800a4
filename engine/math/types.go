package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

/** @brief A quaternion, used to represent rotational orientation. Stored as (X, Y, Z, W) with W the real part. */
type Quaternion Vec4

/**
 * @brief a 4x4 matrix, typically used to represent object transformations.
 * Elements are stored column-major (Data[column*4+row]), the layout
 * expected by GLSL std140/std430 mat4.
 */
type Mat4 struct {
	/** @brief The matrix elements */
	Data [16]float32
}

/**
 * @brief An axis-aligned bounding box. An empty box has Min greater
 * than Max on every axis so that merging with any point yields that point.
 */
type AABB struct {
	/** @brief The minimum corner of the box. */
	Min Vec3
	/** @brief The maximum corner of the box. */
	Max Vec3
}

/**
 * @brief Represents the local transform of an object: translation,
 * rotation and scale. The composed matrix is T * R * S.
 */
type Transform struct {
	/** @brief The translation of the object. */
	Translation Vec3
	/** @brief The scale of the object. */
	Scale Vec3
	/** @brief The rotation of the object. */
	Rotation Quaternion
}
