package items

import "time"

// seedOf строит семя для блока: ID+1, та же редкость, своё время роста
func seedOf(block Item, grow time.Duration) Item {
	return Item{
		ID:        block.ID + 1,
		Name:      block.Name + " Seed",
		Category:  CategorySeed,
		Collision: CollisionNone,
		BreakHits: 1,
		GrowTime:  grow,
		MaxStack:  200,
		Rarity:    block.Rarity,
	}
}

// DefaultItems стартовый набор предметов, достаточный для генерации
// мира и всех механик ядра.
func DefaultItems() []Item {
	dirt := Item{ID: DirtID, Name: "Dirt", Category: CategoryForeground, Collision: CollisionFull, BreakHits: 3, MaxStack: 200, Rarity: 1}
	rock := Item{ID: RockID, Name: "Rock", Category: CategoryForeground, Collision: CollisionFull, BreakHits: 6, MaxStack: 200, Rarity: 8}
	lava := Item{ID: LavaID, Name: "Lava", Category: CategoryLava, Collision: CollisionFull, BreakHits: 5, MaxStack: 200, Rarity: 7}
	door := Item{ID: DoorID, Name: "Door", Category: CategoryDoor, Collision: CollisionNone, BreakHits: 3, MaxStack: 200, Rarity: 4}
	caveBack := Item{ID: CaveBackID, Name: "Cave Background", Category: CategoryBackground, Collision: CollisionNone, BreakHits: 3, MaxStack: 200, Rarity: 1}
	sign := Item{ID: SignID, Name: "Sign", Category: CategorySign, Collision: CollisionNone, BreakHits: 3, MaxStack: 200, Rarity: 3}
	platform := Item{ID: PlatformID, Name: "Wooden Platform", Category: CategoryPlatform, Collision: CollisionJumpThrough, BreakHits: 3, MaxStack: 200, Rarity: 5}

	return []Item{
		{ID: BlankID, Name: "Blank", Category: CategoryForeground, Collision: CollisionNone},
		dirt, seedOf(dirt, 31*time.Second),
		lava, seedOf(lava, 2*time.Minute),
		{ID: MainDoorID, Name: "Main Door", Category: CategoryMainDoor, Collision: CollisionNone, MaxStack: 1},
		{ID: BedrockID, Name: "Bedrock", Category: CategoryBedrock, Collision: CollisionFull, MaxStack: 200},
		rock, seedOf(rock, time.Minute),
		door, seedOf(door, 2*time.Minute),
		caveBack, seedOf(caveBack, 31*time.Second),
		{ID: FistID, Name: "Fist", Category: CategoryFist, MaxStack: 1},
		sign, seedOf(sign, 2*time.Minute),
		{ID: WrenchID, Name: "Wrench", Category: CategoryWrench, MaxStack: 1},
		platform, seedOf(platform, 90*time.Second),
		{ID: GemsID, Name: "Gems", Category: CategoryGems, MaxStack: 200},
		{ID: SmallLockID, Name: "Small Lock", Category: CategoryLock, Collision: CollisionFull, BreakHits: 4, MaxStack: 200, Rarity: 30, LockClass: LockSmall},
		{ID: BigLockID, Name: "Big Lock", Category: CategoryLock, Collision: CollisionFull, BreakHits: 4, MaxStack: 200, Rarity: 50, LockClass: LockBig},
		{ID: HugeLockID, Name: "Huge Lock", Category: CategoryLock, Collision: CollisionFull, BreakHits: 4, MaxStack: 200, Rarity: 70, LockClass: LockHuge},
		{ID: WorldLockID, Name: "World Lock", Category: CategoryWorldLock, Collision: CollisionFull, BreakHits: 4, MaxStack: 200, Rarity: 100},
		{ID: DiceID, Name: "Dice Block", Category: CategoryDice, Collision: CollisionFull, BreakHits: 4, MaxStack: 200, Rarity: 20},
		{ID: WeatherSunID, Name: "Weather Machine - Sunny", Category: CategoryWeatherMachine, Collision: CollisionNone, BreakHits: 4, MaxStack: 200, Rarity: 40},
		{ID: MannequinID, Name: "Mannequin", Category: CategoryMannequin, Collision: CollisionNone, BreakHits: 4, MaxStack: 200, Rarity: 25},
		{ID: VIPEntranceID, Name: "VIP Entrance", Category: CategoryGateway, Collision: CollisionGateway, BreakHits: 4, MaxStack: 200, Rarity: 35},
		{ID: SwitchBlockID, Name: "Switcheroo", Category: CategorySwitch, Collision: CollisionIfOff, BreakHits: 4, MaxStack: 200, Rarity: 30},
		{ID: SteamLockID, Name: "Steam Lock", Category: CategoryLock, Collision: CollisionFull, BreakHits: 4, MaxStack: 200, Rarity: 45, LockClass: LockSteam},
		{ID: SteamPipeID, Name: "Steam Pipe", Category: CategorySteamPipe, Collision: CollisionNone, BreakHits: 3, MaxStack: 200, Rarity: 20},
		{ID: SteamVentID, Name: "Steam Vent", Category: CategorySteamVent, Collision: CollisionNone, BreakHits: 3, MaxStack: 200, Rarity: 25},
		{ID: SteamDoorID, Name: "Steam Door", Category: CategorySteamDoor, Collision: CollisionIfOff, BreakHits: 3, MaxStack: 200, Rarity: 25},
		{ID: SteamLauncherID, Name: "Steam Launcher", Category: CategorySteamLauncher, Collision: CollisionNone, BreakHits: 3, MaxStack: 200, Rarity: 30},
		{ID: SteamEngineID, Name: "Steam Engine", Category: CategorySteamEngine, Collision: CollisionFull, BreakHits: 3, MaxStack: 200, Rarity: 30},
		{ID: SteamLampID, Name: "Steam Lamp", Category: CategorySteamLamp, Collision: CollisionNone, BreakHits: 3, MaxStack: 200, Rarity: 20},
		{ID: SteamSpikesID, Name: "Steam Spikes", Category: CategorySteamSpike, Collision: CollisionIfOn, BreakHits: 3, MaxStack: 200, Rarity: 30},
	}
}

// Default возвращает каталог из DefaultItems
func Default() *Catalog {
	c, err := New(DefaultItems())
	if err != nil {
		panic("items: default catalog: " + err.Error())
	}
	return c
}
