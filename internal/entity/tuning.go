package entity

// Playfield and per-entity tuning. Velocities are in pixels per tick unless
// noted; asteroid and particle velocities are scaled by elapsed seconds.
const (
	ScreenWidth  = 800.0
	ScreenHeight = 600.0

	ShipSize          = 20.0
	ShipRotationSpeed = 0.1
	ShipAcceleration  = 0.1  // per second of thrust
	ShipFriction      = 0.99 // per tick, not time scaled
	ShipSpawnAngle    = -1.5707963267948966
	InitialLives      = 3

	BulletSpeed    = 7.0
	BulletSize     = 2.0
	BulletLifetime = 60 // ticks
	BulletDamage   = 25

	AsteroidMinSize   = 25.0
	AsteroidMaxSize   = 40.0
	AsteroidSpeed     = 2.0
	AsteroidMaxHealth = 100
	AsteroidVertices  = 8
)
