package engine

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32
	// Window starting position y axis, if applicable.
	StartPosY uint32
	// Path of the engine TOML file. A missing file runs on the defaults.
	ConfigPath string
	// Overrides the window title of the config file when set.
	Name string
	// Number of job system workers. Zero uses one per spare CPU.
	Workers int
	// Capacity of the job queue. Zero uses four slots per worker.
	JobQueue int
}
